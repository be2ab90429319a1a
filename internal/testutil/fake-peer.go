package testutil

import (
	"context"
	"net"
	"testing"
	"time"

	qt "github.com/go-quicktest/qt"

	"github.com/anacrolix/peerwire/metainfo"
	pp "github.com/anacrolix/peerwire/peer_protocol"
)

// How long Expect waits for a message.
const ExpectTimeout = 5 * time.Second

// A remote peer scripted by a test. Messages from the other end are decoded in the background.
type FakePeer struct {
	t    testing.TB
	Conn net.Conn
	// What the other end sent in its handshake.
	Handshake pp.HandshakeResult
	msgs      chan pp.Message
}

// Returns a fake peer and the other end of its connection, which is given to the code under test.
func NewFakePeerPipe(t testing.TB) (*FakePeer, net.Conn) {
	mine, theirs := net.Pipe()
	t.Cleanup(func() { mine.Close() })
	return &FakePeer{
		t:    t,
		Conn: mine,
		msgs: make(chan pp.Message, 1024),
	}, theirs
}

// Starts the handshake as the initiating side. The result is sent on the returned channel. Decoding
// starts once it succeeds.
func (me *FakePeer) HandshakeAsync(ih metainfo.Hash, peerID [20]byte) <-chan error {
	ret := make(chan error, 1)
	go func() {
		res, err := pp.Handshake(context.Background(), me.Conn, &ih, peerID, pp.NewPeerExtensionBytes(pp.ExtensionBitFast))
		if err == nil {
			me.Handshake = res
			go me.readLoop()
		}
		ret <- err
	}()
	return ret
}

func (me *FakePeer) readLoop() {
	defer close(me.msgs)
	d := pp.NewDecoder(me.Conn, 1<<20)
	for {
		var msg pp.Message
		if err := d.Decode(&msg); err != nil {
			return
		}
		me.msgs <- msg
	}
}

func (me *FakePeer) Write(msgs ...pp.Message) {
	me.t.Helper()
	for _, msg := range msgs {
		_, err := me.Conn.Write(msg.MustMarshalBinary())
		qt.Assert(me.t, qt.IsNil(err))
	}
}

// Returns the next message matching f. Others are discarded.
func (me *FakePeer) Expect(f func(pp.Message) bool) pp.Message {
	me.t.Helper()
	timeout := time.After(ExpectTimeout)
	for {
		select {
		case msg, ok := <-me.msgs:
			if !ok {
				me.t.Fatal("connection closed while expecting message")
			}
			if f(msg) {
				return msg
			}
		case <-timeout:
			me.t.Fatal("timed out expecting message")
		}
	}
}

func (me *FakePeer) ExpectType(mt pp.MessageType) pp.Message {
	me.t.Helper()
	return me.Expect(func(msg pp.Message) bool {
		return !msg.Keepalive && msg.Type == mt
	})
}

// Fails if a message matching f arrives within d.
func (me *FakePeer) ExpectNone(d time.Duration, f func(pp.Message) bool) {
	me.t.Helper()
	timeout := time.After(d)
	for {
		select {
		case msg, ok := <-me.msgs:
			if !ok {
				return
			}
			if f(msg) {
				me.t.Fatalf("unexpected message %v", msg)
			}
		case <-timeout:
			return
		}
	}
}

// Waits for the other end to close the connection. Pending messages are discarded.
func (me *FakePeer) ExpectClosed() {
	me.t.Helper()
	timeout := time.After(ExpectTimeout)
	for {
		select {
		case _, ok := <-me.msgs:
			if !ok {
				return
			}
		case <-timeout:
			me.t.Fatal("timed out waiting for close")
		}
	}
}

func IsType(mt pp.MessageType) func(pp.Message) bool {
	return func(msg pp.Message) bool {
		return !msg.Keepalive && msg.Type == mt
	}
}
