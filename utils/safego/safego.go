/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package safego

import (
	"runtime/debug"
	"strings"

	"github.com/datazip-inc/rwcdc/utils/logger"
)

type RecoverHandler func(value interface{})

// GlobalRecoverHandler logs the panic value with its stack
var GlobalRecoverHandler RecoverHandler = func(value interface{}) {
	logger.Errorf("recovered from panic: %v", value)
	for _, str := range strings.Split(string(debug.Stack()), "\n") {
		logger.Error(strings.ReplaceAll(str, "\t", ""))
	}
}

type Execution struct {
	f              func()
	recoverHandler RecoverHandler
}

// Run runs f in a new goroutine with a panic handler
func Run(f func()) *Execution {
	exec := Execution{
		f:              f,
		recoverHandler: GlobalRecoverHandler,
	}
	return exec.run()
}

// RunWithHandler runs f in a new goroutine; handler receives any panic value
// after the global handler has logged it
func RunWithHandler(f func(), handler RecoverHandler) *Execution {
	exec := Execution{
		f: f,
		recoverHandler: func(value interface{}) {
			GlobalRecoverHandler(value)
			handler(value)
		},
	}
	return exec.run()
}

func (exec *Execution) run() *Execution {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				exec.recoverHandler(r)
			}
		}()
		exec.f()
	}()
	return exec
}
