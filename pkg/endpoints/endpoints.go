// Package endpoints holds the demonstration endpoint and image URLs used by the TV app.
package endpoints

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Catalog lists named sample URLs.
type Catalog struct {
	Posts  string   `json:"posts" yaml:"posts"`
	Users  string   `json:"users" yaml:"users"`
	Photos string   `json:"photos" yaml:"photos"`
	Images []string `json:"images" yaml:"images"`
}

const imagePrefix = "image:"

// Default returns the built-in sample catalog.
func Default() Catalog {
	return Catalog{
		Posts:  "https://jsonplaceholder.typicode.com/posts",
		Users:  "https://jsonplaceholder.typicode.com/users",
		Photos: "https://jsonplaceholder.typicode.com/photos",
		Images: []string{
			"https://picsum.photos/800/400?random=1",
			"https://picsum.photos/800/400?random=2",
			"https://picsum.photos/800/400?random=3",
			"https://picsum.photos/800/400?random=4",
			"https://picsum.photos/800/400?random=5",
		},
	}
}

// Load reads a catalog from a YAML or JSON file. Missing entries fall back to Default.
func Load(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Catalog{}, errors.New("endpoints file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open endpoints file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return Catalog{}, fmt.Errorf("read endpoints file: %w", err)
	}

	cat, err := parseCatalog(raw, filepath.Ext(path))
	if err != nil {
		return Catalog{}, err
	}
	return withDefaults(sanitizeCatalog(cat)), nil
}

// LoadOrDefault loads path when set and returns Default otherwise.
func LoadOrDefault(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return Load(path)
}

type unmarshalFn func([]byte, any) error

func parseCatalog(data []byte, ext string) (Catalog, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var cat Catalog
		if err := d.fn(data, &cat); err == nil {
			return cat, nil
		}
	}

	return Catalog{}, errors.New("endpoints file format not recognized (expected YAML or JSON)")
}

func sanitizeCatalog(c Catalog) Catalog {
	c.Posts = strings.TrimSpace(c.Posts)
	c.Users = strings.TrimSpace(c.Users)
	c.Photos = strings.TrimSpace(c.Photos)

	images := make([]string, 0, len(c.Images))
	for _, img := range c.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	c.Images = images
	return c
}

func withDefaults(c Catalog) Catalog {
	def := Default()
	if c.Posts == "" {
		c.Posts = def.Posts
	}
	if c.Users == "" {
		c.Users = def.Users
	}
	if c.Photos == "" {
		c.Photos = def.Photos
	}
	if len(c.Images) == 0 {
		c.Images = def.Images
	}
	return c
}

// Resolve maps a catalog name (posts, users, photos, image:N) to its URL.
// Unknown names are returned unchanged so callers can pass URLs directly.
func (c Catalog) Resolve(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "posts":
		return c.Posts, nil
	case "users":
		return c.Users, nil
	case "photos":
		return c.Photos, nil
	}

	if strings.HasPrefix(key, imagePrefix) {
		n, err := strconv.Atoi(strings.TrimPrefix(key, imagePrefix))
		if err != nil {
			return "", fmt.Errorf("invalid image index in %q: %w", name, err)
		}
		if n < 1 || n > len(c.Images) {
			return "", fmt.Errorf("image index %d out of range (1-%d)", n, len(c.Images))
		}
		return c.Images[n-1], nil
	}

	return name, nil
}

// Names returns the resolvable names in display order.
func (c Catalog) Names() []string {
	names := []string{"posts", "users", "photos"}
	for i := range c.Images {
		names = append(names, imagePrefix+strconv.Itoa(i+1))
	}
	return names
}
