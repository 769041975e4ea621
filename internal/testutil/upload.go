package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// PNG returns a small valid png image.
func PNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// MultipartForm 构造带文件字段的表单请求体，返回 body 和 Content-Type
func MultipartForm(t *testing.T, fields map[string]string, fileField, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

// FileHeader 返回一个可以 Open 的上传文件头
func FileHeader(t *testing.T, fileName string, data []byte) *multipart.FileHeader {
	t.Helper()
	body, contentType := MultipartForm(t, nil, "image", fileName, data)

	_, boundary, ok := strings.Cut(contentType, "boundary=")
	require.True(t, ok)
	form, err := multipart.NewReader(body, boundary).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

