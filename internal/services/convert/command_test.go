package convert_test

import (
	"testing"

	"github.com/eric2788/fileconv/internal/services/convert"
	"github.com/stretchr/testify/assert"
)

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		target   string
		input    string
		output   string
		args     []string
	}{
		{
			name:     "default profile",
			filename: "clip.mov",
			target:   "mp4",
			input:    ".mov",
			output:   "clip.mp4",
			args:     []string{"-i", ".mov", "clip.mp4"},
		},
		{
			name:     "3gp profile",
			filename: "holiday.mp4",
			target:   "3gp",
			input:    ".mp4",
			output:   "holiday.3gp",
			args: []string{
				"-i", ".mp4", "-r", "20", "-s", "352x288", "-vb", "400k",
				"-acodec", "aac", "-strict", "experimental", "-ac", "1",
				"-ar", "8000", "-ab", "24k", "holiday.3gp",
			},
		},
		{
			name:     "only the last extension is replaced",
			filename: "My Clip.final.mkv",
			target:   "webm",
			input:    ".mkv",
			output:   "My Clip.final.webm",
			args:     []string{"-i", ".mkv", "My Clip.final.webm"},
		},
		{
			name:     "no extension",
			filename: "recording",
			target:   "mp3",
			input:    ".input",
			output:   "recording.mp3",
			args:     []string{"-i", ".input", "recording.mp3"},
		},
		{
			name:     "empty base",
			filename: ".mov",
			target:   "mp4",
			input:    ".mov",
			output:   "output.mp4",
			args:     []string{"-i", ".mov", "output.mp4"},
		},
		{
			name:     "separators stripped and target normalized",
			filename: "a/b.MOV",
			target:   ".PNG",
			input:    ".mov",
			output:   "ab.png",
			args:     []string{"-i", ".mov", "ab.png"},
		},
		{
			name:     "reserved characters replaced",
			filename: `a:b?"c".wav`,
			target:   "mp3",
			input:    ".wav",
			output:   "a_b__c_.mp3",
			args:     []string{"-i", ".wav", "a_b__c_.mp3"},
		},
		{
			name:     "reserved characters in extension replaced",
			filename: "clip.m:v",
			target:   "mp4",
			input:    ".m_v",
			output:   "clip.mp4",
			args:     []string{"-i", ".m_v", "clip.mp4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := convert.BuildCommand(tt.filename, tt.target)
			assert.Equal(t, tt.input, cmd.Input)
			assert.Equal(t, tt.output, cmd.Output)
			assert.Equal(t, tt.args, cmd.Args)
			assert.NotEqual(t, cmd.Input, cmd.Output)
		})
	}
}
