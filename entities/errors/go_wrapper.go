//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package errors

import (
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Unrecoverable is implemented by panic values which signal that in-memory
// bookkeeping diverged from the state on disk. Such panics are never
// swallowed by the wrappers in this package.
type Unrecoverable interface {
	Unrecoverable() bool
}

func isUnrecoverable(r interface{}) bool {
	u, ok := r.(Unrecoverable)
	return ok && u.Unrecoverable()
}

func recoveryDisabled() bool {
	switch os.Getenv("DISABLE_RECOVERY_ON_PANIC") {
	case "on", "enabled", "1", "true":
		return true
	default:
		return false
	}
}

// GoWrapper runs f in a new goroutine. Panics are logged and recovered,
// unless they are Unrecoverable or recovery was disabled through the
// environment.
func GoWrapper(f func(), logger logrus.FieldLogger) {
	go func() {
		defer func() {
			if recoveryDisabled() {
				return
			}
			if r := recover(); r != nil {
				if isUnrecoverable(r) {
					panic(r)
				}
				logger.Errorf("Recovered from panic: %v", r)
				debug.PrintStack()
			}
		}()
		f()
	}()
}
