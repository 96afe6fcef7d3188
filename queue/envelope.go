package queue

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docai/core"
	"github.com/poiesic/docai/lifecycle"
)

// Kind identifies the entity type an envelope refers to.
type Kind string

const (
	KindDocument Kind = "document"
	KindQuery    Kind = "query"
)

// Envelope is the wire record exchanged between orchestrator stages. It
// carries just enough to survive a worker crash and be redelivered: which
// entity, which lifecycle stage, an idempotency token, and how many
// attempts this stage has consumed. Payloads are never carried on the
// queue; stages reload entity state from the store.
type Envelope struct {
	Kind      Kind
	EntityID  string
	Tag       lifecycle.Tag
	Token     string
	Attempt   int
	NotBefore time.Time // zero means deliverable immediately
}

// NewEnvelope builds an envelope for the given stage with a derived
// idempotency token and a zero attempt count.
func NewEnvelope(kind Kind, entityID string, tag lifecycle.Tag) Envelope {
	return Envelope{
		Kind:     kind,
		EntityID: entityID,
		Tag:      tag,
		Token:    Token(kind, entityID, tag),
	}
}

// Token derives the idempotency token for a (kind, entity, stage) triple.
// The derivation is deterministic, so a redelivered or re-enqueued stage
// always carries the same token as its first delivery.
func Token(kind Kind, entityID string, tag lifecycle.Tag) string {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(entityID))
	h.Write([]byte{0})
	h.Write([]byte(tag))
	sum := h.Sum(nil)
	return fmt.Sprintf("%016x", binary.LittleEndian.Uint64(sum))
}

// EnvelopeMUS serializes envelopes for queue backends.
var EnvelopeMUS = envelopeSer{}

type envelopeSer struct{}

func (envelopeSer) Marshal(e Envelope, bs []byte) (n int) {
	n = ord.String.Marshal(string(e.Kind), bs)
	n += ord.String.Marshal(e.EntityID, bs[n:])
	n += ord.String.Marshal(string(e.Tag), bs[n:])
	n += ord.String.Marshal(e.Token, bs[n:])
	n += varint.Int.Marshal(e.Attempt, bs[n:])
	n += core.TimeMUS.Marshal(e.NotBefore, bs[n:])
	return
}

func (envelopeSer) Unmarshal(bs []byte) (e Envelope, n int, err error) {
	var s string
	var n1 int
	s, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	e.Kind = Kind(s)
	e.EntityID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	s, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Tag = lifecycle.Tag(s)
	e.Token, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Attempt, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.NotBefore, n1, err = core.TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (envelopeSer) Size(e Envelope) (size int) {
	size = ord.String.Size(string(e.Kind))
	size += ord.String.Size(e.EntityID)
	size += ord.String.Size(string(e.Tag))
	size += ord.String.Size(e.Token)
	size += varint.Int.Size(e.Attempt)
	size += core.TimeMUS.Size(e.NotBefore)
	return
}

func (s envelopeSer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// MarshalEnvelope serializes an envelope to bytes.
func MarshalEnvelope(e Envelope) []byte {
	buf := make([]byte, EnvelopeMUS.Size(e))
	EnvelopeMUS.Marshal(e, buf)
	return buf
}

// UnmarshalEnvelope deserializes an envelope from bytes.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	e, _, err := EnvelopeMUS.Unmarshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	return e, nil
}
