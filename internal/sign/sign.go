// Package sign produces the connection and request signatures required by
// the push endpoint. The signing logic itself is opaque, reverse-engineered
// JavaScript; this package embeds it behind the Signer interface so the rest
// of the system never touches the mechanism.
package sign

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Errors
var (
	// ErrSignatureExhausted means the signer kept producing signatures with
	// disallowed characters and gave up after the attempt cap.
	ErrSignatureExhausted = errors.New("signature retries exhausted")
)

// Signer produces a connection-authorizing signature and page-level API
// signatures.
type Signer interface {
	// Sign returns the websocket connection signature for a room.
	Sign(roomID, uniqueID string) (string, error)

	// SignURL appends msToken and a_bogus parameters to an API request URL.
	SignURL(rawURL, userAgent string) (string, error)
}

// disallowedSigChars are characters the push endpoint rejects in a
// signature; the signer retries until the output is clean.
const disallowedSigChars = "-="

const msTokenChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MsToken returns a random alphanumeric token of the given length.
func MsToken(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = msTokenChars[rand.IntN(len(msTokenChars))]
	}
	return string(b)
}

// msStubParams is the fixed parameter list hashed into the msStub. Order is
// part of the contract.
var msStubParams = []struct{ key, value string }{
	{"live_id", "1"},
	{"aid", "6383"},
	{"version_code", "180800"},
	{"webcast_sdk_version", "1.3.0"},
	{"room_id", ""},
	{"sub_room_id", ""},
	{"sub_channel_id", ""},
	{"did_rule", "3"},
	{"user_unique_id", ""},
	{"device_platform", "web"},
	{"device_type", ""},
	{"ac", ""},
	{"identity", "audience"},
}

// MsStub returns the MD5 digest the JS SDK signs: the connection parameters
// rendered as "key=value" pairs joined by commas, in fixed order.
func MsStub(roomID, uniqueID string) string {
	pairs := make([]string, 0, len(msStubParams))
	for _, p := range msStubParams {
		v := p.value
		switch p.key {
		case "room_id":
			v = roomID
		case "user_unique_id":
			v = uniqueID
		}
		pairs = append(pairs, fmt.Sprintf("%s=%s", p.key, v))
	}

	sum := md5.Sum([]byte(strings.Join(pairs, ",")))
	return hex.EncodeToString(sum[:])
}
