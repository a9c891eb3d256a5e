//go:build debug
// +build debug

package pipeline

import (
	"bytes"
	"fmt"
)

type logstruct struct {
	msg  string
	args []interface{}
}

type lumberjack struct {
	*bytes.Buffer
	ch   chan logstruct
	quit chan struct{}
	done chan struct{}
}

func makeLumberJack() lumberjack {
	return lumberjack{
		Buffer: new(bytes.Buffer),
		ch:     make(chan logstruct),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (l *lumberjack) start() {
	defer close(l.done)
	for {
		select {
		case s := <-l.ch:
			fmt.Fprintf(l.Buffer, s.msg, s.args...)
			l.WriteByte('\n')
		case <-l.quit:
			return
		}
	}
}

func (l *lumberjack) log(msg string, args ...interface{}) {
	select {
	case l.ch <- logstruct{msg: msg, args: args}:
	case <-l.quit:
	}
}

// stop ends the trace and waits for start to return. Later messages are dropped.
func (l *lumberjack) stop() {
	close(l.quit)
	<-l.done
}

func (l lumberjack) Log() string { return l.String() }
