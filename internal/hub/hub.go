// Package hub queries the Hugging Face model API for lightweight repo
// metadata. The pipeline uses it as a best-effort preflight before handing
// the actual download to the MLX toolchain.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultBaseURL = "https://huggingface.co"

// Client talks to the Hugging Face API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client. MLXCONV_HF_BASE_URL overrides the endpoint,
// mainly for tests and mirrors.
func NewClient() *Client {
	base := defaultBaseURL
	if v := os.Getenv("MLXCONV_HF_BASE_URL"); v != "" {
		base = strings.TrimSuffix(v, "/")
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RepoInfo summarizes what a conversion is about to pull.
type RepoInfo struct {
	Files       int
	WeightBytes int64
}

// repoMeta mirrors the subset of Hugging Face model metadata we need. The
// "siblings" list contains files at the repository root.
type repoMeta struct {
	Siblings []struct {
		RFilename string `json:"rfilename"`
		Size      int64  `json:"size"`
		LFS       struct {
			Size int64 `json:"size"`
		} `json:"lfs"`
	} `json:"siblings"`
}

// RepoInfo fetches repository metadata for repo (e.g. "org/name") and sums
// the sizes of the files the conversion will need.
func (c *Client) RepoInfo(ctx context.Context, repo string) (RepoInfo, error) {
	url := fmt.Sprintf("%s/api/models/%s", c.baseURL, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RepoInfo{}, err
	}
	if token := Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return RepoInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return RepoInfo{}, fmt.Errorf("huggingface api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var meta repoMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return RepoInfo{}, err
	}

	var info RepoInfo
	for _, sib := range meta.Siblings {
		if sib.RFilename == "" || !isModelFile(sib.RFilename) {
			continue
		}
		size := sib.Size
		if sib.LFS.Size > 0 {
			size = sib.LFS.Size
		}
		info.Files++
		info.WeightBytes += size
	}
	if info.Files == 0 {
		return RepoInfo{}, fmt.Errorf("no model files found for %s", repo)
	}
	return info, nil
}

// Token reads the Hugging Face token from the usual environment variables.
func Token() string {
	for _, key := range []string{"HF_TOKEN", "HUGGING_FACE_HUB_TOKEN", "HUGGINGFACEHUB_API_TOKEN"} {
		if tok := strings.TrimSpace(os.Getenv(key)); tok != "" {
			return tok
		}
	}
	return ""
}

// isModelFile matches the files a conversion actually consumes: config,
// tokenizer assets, and weight shards.
func isModelFile(name string) bool {
	lower := strings.ToLower(name)
	switch lower {
	case "config.json", "tokenizer.json", "tokenizer_config.json", "generation_config.json",
		"special_tokens_map.json", "tokenizer.model", "added_tokens.json", "vocab.json", "merges.txt":
		return true
	}
	if strings.HasSuffix(lower, ".safetensors") || strings.HasSuffix(lower, ".safetensors.index.json") {
		return true
	}
	return strings.HasSuffix(lower, ".npz")
}
