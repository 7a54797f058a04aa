package media

import (
	"bytes"
	"image"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveFormat(t *testing.T) {
	cases := []struct {
		filename, contentType string
		format                imaging.Format
		out                   string
	}{
		{"photo.jpg", "image/jpeg", imaging.JPEG, "image/jpeg"},
		{"photo.png", "image/png", imaging.PNG, "image/png"},
		{"anim.gif", "image/gif", imaging.GIF, "image/gif"},
		{"photo.jpeg", "", imaging.JPEG, "image/jpeg"},
		{"anim.gif", "application/octet-stream", imaging.GIF, "image/gif"},
		{"unknown.bin", "", imaging.PNG, "image/png"},
		{"", "", imaging.PNG, "image/png"},
	}
	for _, c := range cases {
		format, contentType := saveFormat(c.filename, c.contentType)
		assert.Equal(t, c.format, format, "%s %s", c.filename, c.contentType)
		assert.Equal(t, c.out, contentType, "%s %s", c.filename, c.contentType)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	src := imaging.New(40, 20, image.Transparent.C)

	for _, format := range []imaging.Format{imaging.PNG, imaging.JPEG} {
		encoded, err := encode(src, format)
		require.NoError(t, err)

		decoded, err := imaging.Decode(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, 40, decoded.Bounds().Dx())
		assert.Equal(t, 20, decoded.Bounds().Dy())
	}
}

func TestAvatarObjectNameIsStable(t *testing.T) {
	assert.Equal(t, "avatars/7/avatar.png", AvatarObjectName(7))
	assert.Equal(t, AvatarObjectName(7), AvatarObjectName(7),
		"re-uploading an avatar overwrites the previous object")
}
