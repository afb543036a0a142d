package sshterminal

import (
	"errors"
	"io"
	"log"
	"strings"
	"unicode/utf8"
)

// ChunkSize is the maximum number of bytes read from a channel per iteration.
const ChunkSize = 1024

// pump drains the session's channel and publishes each chunk to whichever
// subscriber is attached at the time it is read. It returns when the
// channel reports EOF or an error, which includes the channel being closed
// by Destroy.
func (r *Registry) pump(s *Session) {
	defer close(s.pumpFinished)

	buf := make([]byte, ChunkSize)
	var carry []byte
	for {
		n, err := s.channel.Read(buf)
		if n > 0 {
			data := make([]byte, 0, len(carry)+n)
			data = append(data, carry...)
			data = append(data, buf[:n]...)

			var text string
			text, carry = splitUTF8(data)
			if text != "" {
				r.publish(s, text)
			}
		}
		if err != nil {
			if len(carry) > 0 {
				r.publish(s, strings.ToValidUTF8(string(carry), string(utf8.RuneError)))
			}
			if !errors.Is(err, io.EOF) && s.channel.Active() {
				log.Printf("[terminal] session %s: read error: %v", shortToken(s.Token), err)
			}
			return
		}
	}
}

// publish delivers text to the current subscriber, if any. The subscriber
// is looked up per chunk so output follows a resume immediately.
func (r *Registry) publish(s *Session, text string) {
	r.mu.Lock()
	sub := s.subscriber
	r.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Deliver(s.Token, text)
}

// splitUTF8 decodes b as UTF-8, returning the decoded text and any trailing
// bytes that form the beginning of an incomplete rune. Invalid sequences
// are replaced with U+FFFD.
func splitUTF8(b []byte) (string, []byte) {
	cut := len(b)
	for i := len(b) - 1; i >= 0 && i >= len(b)-(utf8.UTFMax-1); i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				cut = i
			}
			break
		}
	}
	var rest []byte
	if cut < len(b) {
		rest = append([]byte(nil), b[cut:]...)
	}
	return strings.ToValidUTF8(string(b[:cut]), string(utf8.RuneError)), rest
}
