package utils

import (
	"crypto/rand"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)

	passwordInDSN = regexp.MustCompile(`:([^:@/]*)@`)
)

// ULID returns a lexically sortable unique id
func ULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// MaskDSN hides the password segment of a user:password@host DSN
func MaskDSN(dsn string) string {
	return passwordInDSN.ReplaceAllString(dsn, ":****@")
}
