// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// asyncLogger decouples log callers from the latency of the underlying
// writer (typically a rotating file) by handing lines to a single
// background goroutine over a bounded channel. A full buffer drops the
// write rather than blocking the caller, since a filesystem operation
// should never stall on logging.
type asyncLogger struct {
	w    io.WriteCloser
	msgs chan []byte
	done chan struct{}
	once sync.Once
}

// NewAsyncLogger wraps w so that writes are queued and flushed by a
// background goroutine, buffering up to bufferSize pending messages.
func NewAsyncLogger(w io.WriteCloser, bufferSize int) io.WriteCloser {
	l := &asyncLogger{
		w:    w,
		msgs: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *asyncLogger) run() {
	defer close(l.done)
	for msg := range l.msgs {
		l.w.Write(msg)
	}
}

func (l *asyncLogger) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case l.msgs <- buf:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close drains pending messages and closes the underlying writer.
func (l *asyncLogger) Close() error {
	l.once.Do(func() {
		close(l.msgs)
	})
	<-l.done
	return l.w.Close()
}
