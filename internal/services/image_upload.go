package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logging"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotImage      = errors.New("上传的文件不是图片")
	ErrImageTooLarge = errors.New("图片太大")
)

// 允许的图片类型
var allowedImageTypes = map[string]bool{
	"image/gif":  true,
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// ImageStorage 保存帖子图片，返回写入 Post.Image 的值
type ImageStorage interface {
	Save(ctx context.Context, header *multipart.FileHeader) (string, error)
}

// NewImageStorage 按 STORAGE_BACKEND 选择存储
func NewImageStorage(cfg *config.Config) ImageStorage {
	if cfg.StorageBackend == "imgur" {
		if cfg.ImgurClientID != "" {
			return NewImgurStorage(cfg.ImgurClientID, cfg.MaxUploadBytes())
		}
		logging.Warn().Msg("IMGUR_CLIENT_ID 未配置, 使用本地存储")
	}
	return &LocalStorage{Root: cfg.MediaRoot, MaxBytes: cfg.MaxUploadBytes()}
}

// readImage 读取上传文件并确认是可以解码的图片
func readImage(header *multipart.FileHeader, maxBytes int64) ([]byte, *mimetype.MIME, error) {
	if header.Size > maxBytes {
		return nil, nil, ErrImageTooLarge
	}
	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("打开上传文件失败: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("读取文件失败: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, nil, ErrImageTooLarge
	}

	mtype := mimetype.Detect(data)
	if !allowedImageTypes[mtype.String()] {
		return nil, nil, ErrNotImage
	}
	// header sniffing alone accepts truncated files
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, nil, ErrNotImage
	}
	return data, mtype, nil
}

// LocalStorage 写入 Root/posts/ 下，由 /media/ 提供访问
type LocalStorage struct {
	Root     string
	MaxBytes int64
}

func (s *LocalStorage) Save(_ context.Context, header *multipart.FileHeader) (string, error) {
	data, mtype, err := readImage(header, s.MaxBytes)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.Root, "posts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	name := sanitizeFileName(header.Filename, mtype.Extension())
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) && attempt < 5 {
			name = withSuffix(name)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("保存图片失败: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("保存图片失败: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("保存图片失败: %w", err)
		}
		return path.Join("posts", name), nil
	}
}

// sanitizeFileName keeps ASCII letters, digits, dot, dash and underscore.
func sanitizeFileName(name, fallbackExt string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	stem = strings.Trim(b.String(), "_")
	if stem == "" {
		stem = "image"
	}
	if ext == "" || ext == "." || strings.ContainsAny(ext, " /") {
		ext = fallbackExt
	}
	return stem + ext
}

func withSuffix(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + uuid.NewString()[:7] + ext
}

// ImgurResponse Imgur API 响应结构
type ImgurResponse struct {
	Data struct {
		ID         string `json:"id"`
		Link       string `json:"link"`
		DeleteHash string `json:"deletehash"`
		Type       string `json:"type"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// ImgurStorage 上传到 Imgur，Post.Image 保存图片直链
type ImgurStorage struct {
	ClientID string
	Endpoint string
	MaxBytes int64
	Client   *http.Client
}

func NewImgurStorage(clientID string, maxBytes int64) *ImgurStorage {
	return &ImgurStorage{
		ClientID: clientID,
		Endpoint: "https://api.imgur.com/3/image",
		MaxBytes: maxBytes,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ImgurStorage) Save(ctx context.Context, header *multipart.FileHeader) (string, error) {
	data, _, err := readImage(header, s.MaxBytes)
	if err != nil {
		return "", err
	}

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)
	part, err := writer.CreateFormFile("image", sanitizeFileName(header.Filename, ".jpg"))
	if err != nil {
		return "", fmt.Errorf("写入请求体失败: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("写入请求体失败: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, &requestBody)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+s.ClientID)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("上传请求失败: %w", err)
	}
	defer resp.Body.Close()

	var imgurResp ImgurResponse
	if err := json.NewDecoder(resp.Body).Decode(&imgurResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if !imgurResp.Success || imgurResp.Data.Link == "" {
		return "", fmt.Errorf("Imgur 上传失败: status %d", imgurResp.Status)
	}

	logging.Info().Str("id", imgurResp.Data.ID).Msg("Image uploaded to imgur")
	return imgurResp.Data.Link, nil
}
