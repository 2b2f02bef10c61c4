// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package waitq implements the owned FIFO used to track blocked waiters.
//
// A Queue owns its nodes. Callers hold a *Node handle, returned by PushBack,
// which makes removal on any exit path a single idempotent call. A Queue is not safe for concurrent use; callers
// guard it with the mutex of the primitive that owns it.
package waitq

type (
	// Queue is a FIFO of values of type T. The zero value is an empty queue.
	Queue[T any] struct {
		head *Node[T]
		tail *Node[T]
		len  int
	}

	// Node is a handle to a value linked into a Queue.
	Node[T any] struct {
		Value T
		queue *Queue[T]
		prev  *Node[T]
		next  *Node[T]
	}
)

// Len returns the number of linked values.
func (x *Queue[T]) Len() int { return x.len }

// PushBack links value at the tail of the queue, returning its handle.
func (x *Queue[T]) PushBack(value T) *Node[T] {
	n := &Node[T]{Value: value, queue: x, prev: x.tail}
	if x.tail != nil {
		x.tail.next = n
	} else {
		x.head = n
	}
	x.tail = n
	x.len++
	return n
}

// PopFront unlinks and returns the value at the head of the queue.
func (x *Queue[T]) PopFront() (value T, ok bool) {
	n := x.head
	if n == nil {
		return value, false
	}
	x.unlink(n)
	return n.Value, true
}

// Remove unlinks n. It returns false if n is nil, or is not (or no longer)
// linked into the receiver.
func (x *Queue[T]) Remove(n *Node[T]) bool {
	if n == nil || n.queue != x {
		return false
	}
	x.unlink(n)
	return true
}

func (x *Queue[T]) unlink(n *Node[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		x.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		x.tail = n.prev
	}
	n.prev = nil
	n.next = nil
	n.queue = nil
	x.len--
}
