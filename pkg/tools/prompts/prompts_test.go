package prompts

import (
	"strings"
	"testing"
)

func TestCropSystemPromptNamesTools(t *testing.T) {
	prompt := CropSystemPrompt()
	for _, tool := range []string{"summarize_dxf", "parse_clip_polygon", "validate_clip_geometry", "crop_dxf"} {
		if !strings.Contains(prompt, tool) {
			t.Errorf("system prompt does not mention %s", tool)
		}
	}
}

func TestCropWorkflowPrompt(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		region   string
		contains []string
		excludes []string
	}{
		{
			name:     "file and region",
			fileName: "site.dxf",
			region:   "the north wing",
			contains: []string{`"site.dxf"`, "the north wing", "cropped_site.dxf"},
			excludes: []string{"Ask which region"},
		},
		{
			name:     "nothing given",
			contains: []string{"Ask which region", "crop_dxf"},
			excludes: []string{"cropped_"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropWorkflowPrompt(tt.fileName, tt.region)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("prompt missing %q:\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("prompt unexpectedly contains %q:\n%s", s, got)
				}
			}
		})
	}
}
