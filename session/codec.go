package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// CurrentSchemaVersion is written into byte 0 of every encoded snapshot.
// Bump it whenever the field set changes; older entries then decode as
// ErrCorrupt and are refilled from the store.
const CurrentSchemaVersion = 2

// Encoding selects the body format that follows the header.
type Encoding uint8

const (
	EncodingBinary  Encoding = 1
	EncodingMsgpack Encoding = 2
)

// ParseEncoding maps a config name to an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch name {
	case "", "binary":
		return EncodingBinary, nil
	case "msgpack":
		return EncodingMsgpack, nil
	default:
		return 0, fmt.Errorf("unknown cache encoding %q", name)
	}
}

func (e Encoding) String() string {
	switch e {
	case EncodingBinary:
		return "binary"
	case EncodingMsgpack:
		return "msgpack"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// ErrCorrupt is returned by Decode for any input it cannot fully parse.
var ErrCorrupt = errors.New("session: corrupt cache entry")

// Encode serializes s with the given body encoding.
func Encode(s *Snapshot, enc Encoding) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil snapshot")
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)
	buf.WriteByte(byte(enc))

	switch enc {
	case EncodingBinary:
		if err := encodeBinary(&buf, s); err != nil {
			return nil, err
		}
	case EncodingMsgpack:
		body, err := msgpack.Marshal(toWire(s))
		if err != nil {
			return nil, err
		}
		buf.Write(body)
	default:
		return nil, fmt.Errorf("unsupported encoding %d", enc)
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by Encode. Every failure wraps ErrCorrupt.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if data[0] != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorrupt, data[0])
	}

	switch Encoding(data[1]) {
	case EncodingBinary:
		s, err := decodeBinary(bytes.NewReader(data[2:]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return s, nil
	case EncodingMsgpack:
		var w wireSnapshot
		if err := msgpack.Unmarshal(data[2:], &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		s, err := w.snapshot()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %d", ErrCorrupt, data[1])
	}
}

type wireSnapshot struct {
	ID           string `msgpack:"id"`
	Email        string `msgpack:"email"`
	Username     string `msgpack:"username"`
	PasswordHash string `msgpack:"password_hash"`
	Avatar       string `msgpack:"avatar,omitempty"`
	Role         uint8  `msgpack:"role"`
	Confirmed    bool   `msgpack:"confirmed"`
	RefreshToken string `msgpack:"refresh_token,omitempty"`
	CreatedSec   int64  `msgpack:"created_sec"`
	CreatedNsec  uint32 `msgpack:"created_nsec"`
	UpdatedSec   int64  `msgpack:"updated_sec"`
	UpdatedNsec  uint32 `msgpack:"updated_nsec"`
}

func toWire(s *Snapshot) wireSnapshot {
	return wireSnapshot{
		ID:           s.ID,
		Email:        s.Email,
		Username:     s.Username,
		PasswordHash: s.PasswordHash,
		Avatar:       s.Avatar,
		Role:         s.Role,
		Confirmed:    s.Confirmed,
		RefreshToken: s.RefreshToken,
		CreatedSec:   s.CreatedAt.Unix(),
		CreatedNsec:  uint32(s.CreatedAt.Nanosecond()),
		UpdatedSec:   s.UpdatedAt.Unix(),
		UpdatedNsec:  uint32(s.UpdatedAt.Nanosecond()),
	}
}

func (w wireSnapshot) snapshot() (*Snapshot, error) {
	created, err := fromUnix(w.CreatedSec, w.CreatedNsec)
	if err != nil {
		return nil, err
	}
	updated, err := fromUnix(w.UpdatedSec, w.UpdatedNsec)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{
		ID:           w.ID,
		Email:        w.Email,
		Username:     w.Username,
		PasswordHash: w.PasswordHash,
		Avatar:       w.Avatar,
		Role:         w.Role,
		Confirmed:    w.Confirmed,
		RefreshToken: w.RefreshToken,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// fromUnix is the inverse of (t.Unix(), t.Nanosecond()) for any t, the zero
// time included.
func fromUnix(sec int64, nsec uint32) (time.Time, error) {
	if nsec >= uint32(time.Second) {
		return time.Time{}, fmt.Errorf("nanoseconds %d out of range", nsec)
	}
	return time.Unix(sec, int64(nsec)).UTC(), nil
}

const confirmedFlag = 1 << 0

func encodeBinary(buf *bytes.Buffer, s *Snapshot) error {
	for _, field := range []string{s.ID, s.Email, s.Username, s.PasswordHash, s.Avatar, s.RefreshToken} {
		if err := writeString(buf, field); err != nil {
			return err
		}
	}

	buf.WriteByte(s.Role)
	var flags byte
	if s.Confirmed {
		flags |= confirmedFlag
	}
	buf.WriteByte(flags)

	for _, t := range []time.Time{s.CreatedAt, s.UpdatedAt} {
		if err := binary.Write(buf, binary.BigEndian, t.Unix()); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.BigEndian, uint32(t.Nanosecond())); err != nil {
			return err
		}
	}
	return nil
}

func decodeBinary(r *bytes.Reader) (*Snapshot, error) {
	s := &Snapshot{}
	for _, dst := range []*string{&s.ID, &s.Email, &s.Username, &s.PasswordHash, &s.Avatar, &s.RefreshToken} {
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	role, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	s.Role = role

	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if flags&^confirmedFlag != 0 {
		return nil, errors.New("unknown flag bits")
	}
	s.Confirmed = flags&confirmedFlag != 0

	for _, dst := range []*time.Time{&s.CreatedAt, &s.UpdatedAt} {
		var (
			sec  int64
			nsec uint32
		)
		if err := binary.Read(r, binary.BigEndian, &sec); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &nsec); err != nil {
			return nil, err
		}
		t, err := fromUnix(sec, nsec)
		if err != nil {
			return nil, err
		}
		*dst = t
	}
	if r.Len() != 0 {
		return nil, errors.New("trailing bytes")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > math.MaxUint16 {
		return errors.New("field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
