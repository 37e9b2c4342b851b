package deeplink

import (
	"math"
	"testing"
)

func TestPostTokenRoundTrip(t *testing.T) {
	cases := []PostToken{
		{ContentID: "avatar", ChannelID: -1002422139602, MessageID: 55},
		{ContentID: "avatar_2", ChannelID: 7872708405, MessageID: 1},
		{ContentID: "the-batman", ChannelID: -1, MessageID: 0},
		{ContentID: "x", ChannelID: math.MaxInt64, MessageID: math.MaxInt32},
		{ContentID: "multi-part-slug_3", ChannelID: -1002601782167, MessageID: 987654},
	}

	for _, want := range cases {
		token := EncodePost(want.ContentID, want.ChannelID, want.MessageID)
		got, ok := DecodePost(token)
		if !ok {
			t.Fatalf("DecodePost(%q) reported invalid", token)
		}
		if got != want {
			t.Fatalf("round trip mismatch: token=%q got=%+v want=%+v", token, got, want)
		}
	}
}

func TestDecodePostRejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"avatar",
		"Favatar",
		"avatar-n100-m5",            // missing suffix
		"avatar-n100-m5-pst2",       // unknown version
		"avatar-x100-m5-pst1",       // bad sign marker
		"avatar-n100-5-pst1",        // missing message marker
		"avatar-nabc-m5-pst1",       // non-numeric channel
		"avatar-n100-mxyz-pst1",     // non-numeric message
		"avatar-n-m5-pst1",          // empty channel digits
		"-n100-m5-pst1",             // empty content id
		"avatar-n100-m-5-pst1-pst1", // garbage fields
	}

	for _, input := range inputs {
		if _, ok := DecodePost(input); ok {
			t.Fatalf("DecodePost(%q) accepted malformed token", input)
		}
	}
}

func TestResolveEntryToken(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{EncodePost("avatar", -1002422139602, 55), "avatar"},
		{"Favatar_2", "avatar_2"},
		{"avatar", "avatar"},
		{"F", "F"},
	}

	for _, tc := range cases {
		if got := ResolveEntryToken(tc.raw); got != tc.want {
			t.Fatalf("ResolveEntryToken(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestEncodeContent(t *testing.T) {
	if got := EncodeContent("avatar"); got != "Favatar" {
		t.Fatalf("EncodeContent = %q", got)
	}
}
