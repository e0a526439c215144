/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package util

import (
	"runtime"
)

// WithRecover runs handler and passes any panic value plus the stack to recoverHandlers.
func WithRecover(handler func(), recoverHandlers ...func(p interface{}, stack []byte)) {
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]

			for _, f := range recoverHandlers {
				if f != nil {
					f(r, buf)
				}
			}
		}
	}()
	handler()
}
