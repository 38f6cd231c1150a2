package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testSnapshot() *Snapshot {
	now := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	return &Snapshot{
		ID:           "6f1c2a3e-0000-4000-8000-000000000001",
		Email:        "alice@x.io",
		Username:     "alice",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		Avatar:       "https://media.example/alice.png",
		Role:         2,
		Confirmed:    true,
		RefreshToken: strings.Repeat("r", 400),
		CreatedAt:    now,
		UpdatedAt:    now.Add(time.Minute),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{EncodingBinary, EncodingMsgpack} {
		t.Run(enc.String(), func(t *testing.T) {
			in := testSnapshot()
			data, err := Encode(in, enc)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if data[0] != CurrentSchemaVersion || Encoding(data[1]) != enc {
				t.Fatalf("unexpected header %v", data[:2])
			}

			out, err := Decode(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if *out != *in {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
			}
		})
	}
}

func TestEncodeDecodeZeroFields(t *testing.T) {
	for _, enc := range []Encoding{EncodingBinary, EncodingMsgpack} {
		in := &Snapshot{Email: "bob@x.io", Role: 3}
		data, err := Encode(in, enc)
		if err != nil {
			t.Fatalf("%s encode: %v", enc, err)
		}
		out, err := Decode(data)
		if err != nil {
			t.Fatalf("%s decode: %v", enc, err)
		}
		if *out != *in {
			t.Fatalf("%s: got %+v want %+v", enc, out, in)
		}
		if !out.CreatedAt.IsZero() || !out.UpdatedAt.IsZero() {
			t.Fatalf("%s: zero timestamps decoded as %v / %v", enc, out.CreatedAt, out.UpdatedAt)
		}
	}
}

func TestEncodeDecodeTimestampsOutsideNanosecondRange(t *testing.T) {
	for _, enc := range []Encoding{EncodingBinary, EncodingMsgpack} {
		in := testSnapshot()
		in.CreatedAt = time.Date(1500, 1, 2, 3, 4, 5, 6, time.UTC)
		in.UpdatedAt = time.Date(2500, 6, 7, 8, 9, 10, 11, time.UTC)
		data, err := Encode(in, enc)
		if err != nil {
			t.Fatalf("%s encode: %v", enc, err)
		}
		out, err := Decode(data)
		if err != nil {
			t.Fatalf("%s decode: %v", enc, err)
		}
		if !out.CreatedAt.Equal(in.CreatedAt) || !out.UpdatedAt.Equal(in.UpdatedAt) {
			t.Fatalf("%s: got %v / %v", enc, out.CreatedAt, out.UpdatedAt)
		}
	}
}

func TestDecodeRejectsRoleOutOfRange(t *testing.T) {
	for _, enc := range []Encoding{EncodingBinary, EncodingMsgpack} {
		for _, role := range []uint8{0, 4, 0xEE} {
			in := testSnapshot()
			in.Role = role
			data, err := Encode(in, enc)
			if err != nil {
				t.Fatalf("%s encode: %v", enc, err)
			}
			if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("%s role=%d: expected ErrCorrupt, got %v", enc, role, err)
			}
		}
	}
}

func TestDecodeRejectsNanosecondOverflow(t *testing.T) {
	data, err := Encode(testSnapshot(), EncodingBinary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// The trailing 4 bytes are UpdatedAt's nanoseconds.
	copy(data[len(data)-4:], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	data, err := Encode(testSnapshot(), EncodingBinary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data[0] = CurrentSchemaVersion + 1
	if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for unknown version, got %v", err)
	}
}

func TestDecodeRejectsUnknownEncoding(t *testing.T) {
	data, err := Encode(testSnapshot(), EncodingBinary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data[1] = 99
	if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for unknown encoding, got %v", err)
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	for _, enc := range []Encoding{EncodingBinary, EncodingMsgpack} {
		data, err := Encode(testSnapshot(), enc)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		for _, n := range []int{0, 1, 2, 5, len(data) / 2, len(data) - 1} {
			if _, err := Decode(data[:n]); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("%s len=%d: expected ErrCorrupt, got %v", enc, n, err)
			}
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Encode(testSnapshot(), EncodingBinary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(append(data, 0)); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestEncodeRejectsUnknownEncoding(t *testing.T) {
	if _, err := Encode(testSnapshot(), 0); err == nil {
		t.Fatal("expected encode error for zero encoding")
	}
}

func TestParseEncoding(t *testing.T) {
	if enc, err := ParseEncoding(""); err != nil || enc != EncodingBinary {
		t.Fatalf("default encoding = %v, %v", enc, err)
	}
	if enc, err := ParseEncoding("msgpack"); err != nil || enc != EncodingMsgpack {
		t.Fatalf("msgpack encoding = %v, %v", enc, err)
	}
	if _, err := ParseEncoding("pickle"); err == nil {
		t.Fatal("expected unknown encoding error")
	}
}
