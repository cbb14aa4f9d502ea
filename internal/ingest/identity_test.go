package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractIdentity(t *testing.T) {
	tests := []struct {
		name    string
		headers []Header
		want    Identity
	}{
		{
			name: "display name with angle brackets",
			headers: []Header{
				{Name: "Subject", Value: "Hi"},
				{Name: "From", Value: "Jane Doe <jane@x.com>"},
			},
			want: Identity{Title: "Hi", SenderName: "Jane Doe", SenderEmail: "jane@x.com"},
		},
		{
			name:    "bare address doubles as name",
			headers: []Header{{Name: "From", Value: "jane@x.com"}},
			want:    Identity{SenderName: "jane@x.com", SenderEmail: "jane@x.com"},
		},
		{
			name:    "no from header",
			headers: []Header{{Name: "Subject", Value: "Weekly digest"}},
			want:    Identity{Title: "Weekly digest"},
		},
		{
			name:    "nil headers",
			headers: nil,
			want:    Identity{},
		},
		{
			name: "header names match case-insensitively",
			headers: []Header{
				{Name: "SUBJECT", Value: "Hello"},
				{Name: "from", Value: "Bob <bob@y.com>"},
			},
			want: Identity{Title: "Hello", SenderName: "Bob", SenderEmail: "bob@y.com"},
		},
		{
			name:    "missing closing bracket still yields address",
			headers: []Header{{Name: "From", Value: "Bob <bob@y.com"}},
			want:    Identity{SenderName: "Bob", SenderEmail: "bob@y.com"},
		},
		{
			name:    "whitespace trimmed around name and address",
			headers: []Header{{Name: "From", Value: "  News Desk   < desk@news.example >"}},
			want:    Identity{SenderName: "News Desk", SenderEmail: "desk@news.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIdentity(tt.headers))
		})
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("jane@x.com"))
	assert.True(t, ValidEmail("news+digest@letters.example.org"))

	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("not an address"))
	assert.False(t, ValidEmail("Jane Doe"))
	assert.False(t, ValidEmail("half@"))
}
