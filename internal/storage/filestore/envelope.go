package filestore

import (
	"fmt"
	"time"

	"github.com/yndnr/tokbroker/pkg/codec"
)

// envelopeVersion is bumped on incompatible layout changes.
const envelopeVersion = 1

// envelope is the on-disk form of one entry.
type envelope struct {
	Version   int       `cbor:"1,keyasint"`
	Key       string    `cbor:"2,keyasint"`
	ExpiresAt time.Time `cbor:"3,keyasint"`
	Value     []byte    `cbor:"4,keyasint"`
	Sealed    bool      `cbor:"5,keyasint,omitempty"`
}

func encodeEnvelope(e *envelope) ([]byte, error) {
	e.Version = envelopeVersion
	return codec.Marshal(e)
}

func decodeEnvelope(data []byte) (*envelope, error) {
	var e envelope
	if err := codec.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", e.Version)
	}
	return &e, nil
}

func (e *envelope) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
