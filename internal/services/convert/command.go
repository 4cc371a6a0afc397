package convert

import (
	"strings"

	"github.com/eric2788/fileconv/internal/services/format"
	"github.com/eric2788/fileconv/utils"
)

const (
	fallbackInput = ".input"
	fallbackBase  = "output"
)

// Command is one engine invocation with the virtual file names it reads and writes.
type Command struct {
	Input  string
	Output string
	Args   []string
}

var stripSeparators = strings.NewReplacer("/", "", "\\", "")

// BuildCommand derives the virtual file names and engine arguments for
// converting filename to target.
func BuildCommand(filename, target string) Command {
	target = format.Normalize(target)

	input := fallbackInput
	base := filename
	if ext := utils.GetPathFormat(filename); ext != "" {
		input = "." + strings.ToLower(utils.SanitizeFilename(stripSeparators.Replace(ext)))
		base = strings.TrimSuffix(filename, "."+ext)
	}
	// the engine workspace is a real directory, so keep the name portable
	base = strings.TrimSpace(utils.SanitizeFilename(stripSeparators.Replace(base)))
	if base == "" {
		base = fallbackBase
	}
	output := base + "." + target

	var args []string
	switch target {
	case "3gp":
		args = []string{
			"-i", input,
			"-r", "20",
			"-s", "352x288",
			"-vb", "400k",
			"-acodec", "aac",
			"-strict", "experimental",
			"-ac", "1",
			"-ar", "8000",
			"-ab", "24k",
			output,
		}
	default:
		args = []string{"-i", input, output}
	}

	return Command{
		Input:  input,
		Output: output,
		Args:   args,
	}
}
