package core

import (
	"encoding/base64"
	"errors"
	"strings"
)

const receiptPrefix = "data:"

var ErrInvalidReceipt = errors.New("invalid embedded receipt")

// EncodeReceipt produces the embedded payload for an image body:
// "data:<media-type>;base64,<body>".
func EncodeReceipt(mediaType string, body []byte) string {
	return receiptPrefix + mediaType + ";base64," + base64.StdEncoding.EncodeToString(body)
}

// IsEmbeddedReceipt reports whether s is an embedded payload rather than a
// server reference.
func IsEmbeddedReceipt(s string) bool {
	return strings.HasPrefix(s, receiptPrefix)
}

// DecodeReceipt splits an embedded payload into its media type and bytes.
func DecodeReceipt(s string) (mediaType string, body []byte, err error) {
	if !IsEmbeddedReceipt(s) {
		return "", nil, ErrInvalidReceipt
	}
	meta, data, ok := strings.Cut(strings.TrimPrefix(s, receiptPrefix), ",")
	if !ok {
		return "", nil, ErrInvalidReceipt
	}
	mediaType, ok = strings.CutSuffix(meta, ";base64")
	if !ok || mediaType == "" {
		return "", nil, ErrInvalidReceipt
	}
	body, err = base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, errors.Join(ErrInvalidReceipt, err)
	}
	return mediaType, body, nil
}

// ReceiptExtension maps a media type to the file extension used when the
// backend stores a decoded receipt.
func ReceiptExtension(mediaType string) string {
	switch {
	case mediaType == "":
		return "bin"
	case strings.Contains(mediaType, "jpeg"):
		return "jpg"
	case strings.Contains(mediaType, "png"):
		return "png"
	case strings.Contains(mediaType, "gif"):
		return "gif"
	default:
		return "bin"
	}
}
