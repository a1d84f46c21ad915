package main

import "github.com/datazip-inc/rwcdc/protocol"

func main() {
	protocol.Execute()
}
