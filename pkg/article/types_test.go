package article

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceValidate(t *testing.T) {
	tests := []struct {
		name    string
		src     Source
		wantErr bool
	}{
		{"valid", Source{Name: "Site", BaseURL: "https://news.example.org"}, false},
		{"missing name", Source{BaseURL: "https://news.example.org"}, true},
		{"missing url", Source{Name: "Site"}, true},
		{"bad scheme", Source{Name: "Site", BaseURL: "ftp://news.example.org"}, true},
		{"no host", Source{Name: "Site", BaseURL: "https://"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.src.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSourceSchedulable(t *testing.T) {
	src := Source{Active: true, ValidationStatus: StatusValidated}
	assert.True(t, src.Schedulable())

	src.Active = false
	assert.False(t, src.Schedulable())

	src.Active = true
	src.ValidationStatus = StatusFailed
	assert.False(t, src.Schedulable())

	src.ValidationStatus = StatusPending
	assert.False(t, src.Schedulable())
}

func TestSourceDomainAndDelay(t *testing.T) {
	src := Source{BaseURL: "https://news.example.org/section", CrawlDelaySeconds: 3}
	assert.Equal(t, "news.example.org", src.Domain())
	assert.Equal(t, 3*time.Second, src.CrawlDelay())
}
