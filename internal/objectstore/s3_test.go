package objectstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/lms-identity/internal/config"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		filename   string
		wantPrefix string
		wantSuffix string
	}{
		{name: "with prefix", prefix: "lms", filename: "me.PNG", wantPrefix: "lms/avatars/", wantSuffix: ".png"},
		{name: "prefix with slashes", prefix: "/lms/", filename: "me.jpg", wantPrefix: "lms/avatars/", wantSuffix: ".jpg"},
		{name: "no prefix", prefix: "", filename: "me.webp", wantPrefix: "avatars/", wantSuffix: ".webp"},
		{name: "no extension", prefix: "lms", filename: "avatar", wantPrefix: "lms/avatars/", wantSuffix: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := objectKey(tt.prefix, tt.filename)
			assert.True(t, strings.HasPrefix(key, tt.wantPrefix), key)
			assert.True(t, strings.HasSuffix(key, tt.wantSuffix), key)
		})
	}

	assert.NotEqual(t, objectKey("lms", "a.png"), objectKey("lms", "a.png"))
}

func TestPublicBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3
		want string
	}{
		{
			name: "explicit base url",
			cfg:  config.S3{Bucket: "b", PublicBaseURL: "https://cdn.lms.dev/"},
			want: "https://cdn.lms.dev",
		},
		{
			name: "custom endpoint",
			cfg:  config.S3{Bucket: "b", Endpoint: "http://localhost:9000"},
			want: "http://localhost:9000/b",
		},
		{
			name: "aws default",
			cfg:  config.S3{Bucket: "b", Region: "eu-central-1"},
			want: "https://b.s3.eu-central-1.amazonaws.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicBaseURL(tt.cfg))
		})
	}
}

func TestNewS3_BucketRequired(t *testing.T) {
	store, err := NewS3(context.Background(), config.S3{})
	require.Error(t, err)
	assert.Nil(t, store)
}

func TestDelete_EmptyID(t *testing.T) {
	s := &S3Store{}
	assert.NoError(t, s.Delete(context.Background(), ""))
}
