package reader

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// GetUIDCommand is the PC/SC pseudo-APDU GET DATA asking the reader for the
// card's unique identifier.
var GetUIDCommand = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}

var (
	ErrShortResponse = errors.New("apdu response too short")
	ErrBadStatusWord = errors.New("apdu status word not 90 00")
	ErrEmptyUID      = errors.New("apdu response carried no identifier")
)

// ParseUIDResponse checks the trailing status word and returns the
// identifier bytes as upper-case hex.
func ParseUIDResponse(rsp []byte) (string, error) {
	if len(rsp) < 2 {
		return "", ErrShortResponse
	}
	sw1, sw2 := rsp[len(rsp)-2], rsp[len(rsp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return "", fmt.Errorf("%w: %02X %02X", ErrBadStatusWord, sw1, sw2)
	}
	uid := rsp[:len(rsp)-2]
	if len(uid) == 0 {
		return "", ErrEmptyUID
	}
	return strings.ToUpper(hex.EncodeToString(uid)), nil
}
