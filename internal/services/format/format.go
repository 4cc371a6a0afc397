package format

import (
	"slices"
	"strings"

	"github.com/eric2788/fileconv/utils"
)

type Category struct {
	Name          string   `json:"name"`
	Formats       []string `json:"formats"`
	DefaultFormat string   `json:"default"`

	// extensions recognized as input of this category but not offered as targets
	sourceOnly []string
}

const (
	Video = "video"
	Audio = "audio"
	Image = "image"
)

var categories = []*Category{
	{
		Name:          Video,
		Formats:       []string{"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm", "3gp"},
		DefaultFormat: "mp4",
		sourceOnly:    []string{"m4v", "mpeg", "mpg", "ts"},
	},
	{
		Name:          Audio,
		Formats:       []string{"mp3", "wav", "aac", "ogg", "flac", "m4a"},
		DefaultFormat: "mp3",
		sourceOnly:    []string{"wma", "opus"},
	},
	{
		Name:          Image,
		Formats:       []string{"jpg", "png", "gif", "webp", "bmp"},
		DefaultFormat: "png",
		sourceOnly:    []string{"jpeg", "svg", "ico", "tiff"},
	},
}

// Fallback is used for files whose extension matches no category.
var Fallback = categories[0]

func All() []*Category {
	return slices.Clone(categories)
}

func Lookup(name string) (*Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range categories {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Detect infers the category from the extension of filename.
func Detect(filename string) (*Category, bool) {
	ext := SourceFormat(filename)
	if ext == "" {
		return nil, false
	}
	for _, c := range categories {
		if slices.Contains(c.Formats, ext) || slices.Contains(c.sourceOnly, ext) {
			return c, true
		}
	}
	return nil, false
}

// SourceFormat returns the lower-cased extension of filename without the dot.
func SourceFormat(filename string) string {
	return strings.ToLower(utils.GetPathFormat(filename))
}

func (c *Category) Supports(format string) bool {
	return slices.Contains(c.Formats, Normalize(format))
}

func (c *Category) Default() string {
	return c.DefaultFormat
}

// Normalize lower-cases format and strips a leading dot.
func Normalize(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}
