package main

import "sync"

// eventLoop runs queued commands one at a time on its own goroutine. Commands
// are never dropped, so events keep the order they were enqueued in.
type eventLoop struct {
	commands chan func()
	closing  chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func newEventLoop() *eventLoop {
	l := &eventLoop{
		commands: make(chan func(), 256),
		closing:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.loop()
	return l
}

func (l *eventLoop) loop() {
	defer l.wg.Done()
	for {
		select {
		case fn := <-l.commands:
			fn()
		case <-l.closing:
			for {
				select {
				case fn := <-l.commands:
					fn()
				default:
					return
				}
			}
		}
	}
}

// enqueue blocks while the queue is full and reports false once the loop is
// closed.
func (l *eventLoop) enqueue(fn func()) bool {
	select {
	case <-l.closing:
		return false
	default:
	}
	select {
	case l.commands <- fn:
		return true
	case <-l.closing:
		return false
	}
}

// close stops the loop once the queued commands have run and waits for it.
func (l *eventLoop) close() {
	l.once.Do(func() { close(l.closing) })
	l.wg.Wait()
}
