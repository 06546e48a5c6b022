// Package domain holds shared domain primitives: typed identifiers parsed at
// trust boundaries so the compiler keeps subject, session, and sample IDs from
// being swapped.
package domain

import (
	"github.com/google/uuid"

	dErrors "voicegate/pkg/domain-errors"
)

// SubjectID identifies the person being enrolled or verified.
type SubjectID uuid.UUID

// SessionID identifies one voice enrollment session.
type SessionID uuid.UUID

// SampleID identifies one recorded enrollment sample.
type SampleID uuid.UUID

// NewSubjectID returns a fresh random SubjectID.
func NewSubjectID() SubjectID { return SubjectID(uuid.New()) }

// NewSessionID returns a fresh random SessionID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewSampleID returns a fresh random SampleID.
func NewSampleID() SampleID { return SampleID(uuid.New()) }

func (id SubjectID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SampleID) String() string  { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id SubjectID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SampleID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps IDs as canonical UUID strings in JSON payloads and
// store serializations instead of raw byte arrays.
func (id SubjectID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id SampleID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *SubjectID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubjectID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SampleID) UnmarshalText(b []byte) error {
	parsed, err := ParseSampleID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. External input never becomes an ID without passing here.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be nil")
	}
	return u, nil
}

// ParseSubjectID constructs a SubjectID from external input.
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID(s, "subject")
	if err != nil {
		return SubjectID{}, err
	}
	return SubjectID(u), nil
}

// ParseSessionID constructs a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session")
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

// ParseSampleID constructs a SampleID from external input.
func ParseSampleID(s string) (SampleID, error) {
	u, err := parseUUID(s, "sample")
	if err != nil {
		return SampleID{}, err
	}
	return SampleID(u), nil
}
