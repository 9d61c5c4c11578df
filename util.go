package cardano

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// CborEncoder produces the canonical encoding used for transaction bodies so
// the body hash is stable across runs.
var CborEncoder, _ = cbor.CoreDetEncOptions().EncMode()

var StandardCborDecoder, _ = cbor.DecOptions{
	UTF8: cbor.UTF8DecodeInvalid,
}.DecMode()

// DiagnoseCbor renders cbor bytes in the extended diagnostic notation, broken
// over multiple lines for the cli tools.
func DiagnoseCbor(data []byte) (string, error) {
	diag, err := cbor.Diagnose(data)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return IndentCbor(diag), nil
}

func IndentCbor(input string) string {
	var index = 0
	var output = ""
	indent := 0
	var newline bool

	for {
		if index >= len(input) {
			break
		}

		nextChar := input[index]

		if nextChar == '[' || nextChar == '{' {
			if newline {
				output += strings.Repeat(" ", indent*2)
				newline = false
			}
			indent++
			output += string(nextChar) + "\n" + strings.Repeat(" ", indent*2)
		} else if nextChar == ']' || nextChar == '}' {
			indent--
			output += "\n" + strings.Repeat(" ", indent*2) + string(nextChar)
		} else if nextChar == ',' {
			output += ",\n"
			newline = true
		} else {
			if newline {
				if nextChar == ' ' {
					index++
					continue
				}
				output += strings.Repeat(" ", indent*2)
				newline = false
			}
			output += string(nextChar)
		}

		index++
	}

	return output
}

// DecodeHex accepts hex with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, errors.Wrapf(err, "'%s' is not valid hex", s)
	}
	return b, nil
}

func DirectoryExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		log.Info().Msgf("error checking directory: %v", err)
		return false
	}
	return info.IsDir()
}
