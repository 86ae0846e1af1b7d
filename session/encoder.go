package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionV1 = 1
	refreshFormatVersionV1 = 1
)

const (
	flagRevoked byte = 1 << iota
	flagPasswordChangeRequired
)

const maxFieldLen = 65535

func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(64 + len(s.AccessToken) + len(s.RefreshToken))

	buf.WriteByte(sessionFormatVersionV1)

	var flags byte
	if s.Revoked {
		flags |= flagRevoked
	}
	if s.User.PasswordChangeRequired {
		flags |= flagPasswordChangeRequired
	}
	buf.WriteByte(flags)

	for _, field := range []string{
		s.UserID,
		s.AccessToken,
		s.RefreshToken,
		s.User.ID,
		s.User.Username,
		s.User.FirstName,
		s.User.LastName,
		s.User.Role,
	} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	for _, v := range []int64{s.AccessExpiresAt, s.ExpiresAt, s.CreatedAt} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionV1 {
		return nil, errors.New("invalid session version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	s := &Session{
		Revoked: flags&flagRevoked != 0,
		User: CachedUser{
			PasswordChangeRequired: flags&flagPasswordChangeRequired != 0,
		},
	}

	for _, dst := range []*string{
		&s.UserID,
		&s.AccessToken,
		&s.RefreshToken,
		&s.User.ID,
		&s.User.Username,
		&s.User.FirstName,
		&s.User.LastName,
		&s.User.Role,
	} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}

	for _, dst := range []*int64{&s.AccessExpiresAt, &s.ExpiresAt, &s.CreatedAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, err
		}
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session")
	}

	return s, nil
}

func EncodeRefreshRecord(r *RefreshRecord) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil refresh record")
	}

	var buf bytes.Buffer
	buf.WriteByte(refreshFormatVersionV1)

	var flags byte
	if r.Revoked {
		flags |= flagRevoked
	}
	buf.WriteByte(flags)

	if err := writeString(&buf, r.UserID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func DecodeRefreshRecord(data []byte) (*RefreshRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != refreshFormatVersionV1 {
		return nil, errors.New("invalid refresh record version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	r := &RefreshRecord{Revoked: flags&flagRevoked != 0}
	if r.UserID, err = readString(reader); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}

	return r, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxFieldLen {
		return errors.New("session field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > reader.Len() {
		return "", io.ErrUnexpectedEOF
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
