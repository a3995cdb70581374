package domain

import (
	"fmt"
	"strconv"
)

// Platform identifiers are 64-bit snowflakes. They marshal to JSON as
// decimal strings, since values above 2^53 do not survive a float64
// decoder. Both strings and bare numbers are accepted on input.
type GuildID uint64
type ChannelID uint64
type MemberID uint64
type RoleID uint64

func (id GuildID) String() string   { return strconv.FormatUint(uint64(id), 10) }
func (id ChannelID) String() string { return strconv.FormatUint(uint64(id), 10) }
func (id MemberID) String() string  { return strconv.FormatUint(uint64(id), 10) }
func (id RoleID) String() string    { return strconv.FormatUint(uint64(id), 10) }

// ParseChannelID parses a decimal snowflake.
func ParseChannelID(s string) (ChannelID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return ChannelID(v), err
}

// ParseGuildID parses a decimal snowflake.
func ParseGuildID(s string) (GuildID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return GuildID(v), err
}

// ParseMemberID parses a decimal snowflake.
func ParseMemberID(s string) (MemberID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return MemberID(v), err
}

func (id GuildID) MarshalJSON() ([]byte, error)   { return marshalSnowflake(uint64(id)) }
func (id ChannelID) MarshalJSON() ([]byte, error) { return marshalSnowflake(uint64(id)) }
func (id MemberID) MarshalJSON() ([]byte, error)  { return marshalSnowflake(uint64(id)) }
func (id RoleID) MarshalJSON() ([]byte, error)    { return marshalSnowflake(uint64(id)) }

func (id *GuildID) UnmarshalJSON(data []byte) error   { return unmarshalSnowflake(data, (*uint64)(id)) }
func (id *ChannelID) UnmarshalJSON(data []byte) error { return unmarshalSnowflake(data, (*uint64)(id)) }
func (id *MemberID) UnmarshalJSON(data []byte) error  { return unmarshalSnowflake(data, (*uint64)(id)) }
func (id *RoleID) UnmarshalJSON(data []byte) error    { return unmarshalSnowflake(data, (*uint64)(id)) }

func marshalSnowflake(v uint64) ([]byte, error) {
	return strconv.AppendQuote(nil, strconv.FormatUint(v, 10)), nil
}

// unmarshalSnowflake leaves dst untouched for null.
func unmarshalSnowflake(data []byte, dst *uint64) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*dst = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid snowflake %s: %w", data, err)
	}
	*dst = v
	return nil
}
