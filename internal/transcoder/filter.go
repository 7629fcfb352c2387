package transcoder

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// OverlayType selects the filter stage generated for an overlay.
type OverlayType string

const (
	OverlayText  OverlayType = "text"
	OverlayLogo  OverlayType = "logo"
	OverlayImage OverlayType = "image"
)

const (
	defaultFontSize  = 24
	defaultFontColor = "white"
)

// Overlay is the burn-in description of one annotation. X and Y are
// percentages of the frame, matching how the player positions overlays.
type Overlay struct {
	Type     OverlayType
	Content  string
	X, Y     float64
	Width    int
	Height   int
	FontSize int
	Color    string
}

// FilterInput is an image read by the filter graph. Protocols is the
// -protocol_whitelist ffmpeg must apply when opening Source.
type FilterInput struct {
	Source    string
	Protocols string
}

// FilterGraph is a -filter_complex expression plus the extra inputs it reads.
// Input i in Inputs is ffmpeg input i+1; input 0 is the camera.
type FilterGraph struct {
	Expr   string
	Inputs []FilterInput
	Output string
}

const (
	remoteProtocols = "http,https,tcp,tls"
	fileProtocols   = "file"
)

var colorPattern = regexp.MustCompile(`^(#|0x)?[0-9A-Za-z]+(@[0-9.]+)?$`)

// BuildFilterGraph chains one stage per overlay: drawtext for text overlays
// and a composite for image and logo overlays. Image sources must be http(s)
// URLs or files under assetRoot; an empty assetRoot allows URLs only. It
// returns nil when there is nothing to draw.
func BuildFilterGraph(overlays []Overlay, assetRoot string) (*FilterGraph, error) {
	if len(overlays) == 0 {
		return nil, nil
	}

	g := &FilterGraph{}
	stages := make([]string, 0, len(overlays))
	label := "0:v"

	for i, o := range overlays {
		next := "v" + strconv.Itoa(i)
		x, y := percent(o.X), percent(o.Y)

		switch o.Type {
		case OverlayText:
			text, err := escapeDrawtext(o.Content)
			if err != nil {
				return nil, &FilterError{Index: i, Reason: err.Error()}
			}
			size := o.FontSize
			if size <= 0 {
				size = defaultFontSize
			}
			color := o.Color
			if color == "" {
				color = defaultFontColor
			}
			if !colorPattern.MatchString(color) {
				return nil, &FilterError{Index: i, Reason: fmt.Sprintf("invalid color %q", color)}
			}
			stages = append(stages, fmt.Sprintf("[%s]drawtext=text=%s:x=w*%s:y=h*%s:fontsize=%d:fontcolor=%s[%s]",
				label, text, x, y, size, color, next))

		case OverlayImage, OverlayLogo:
			in, err := imageInput(o.Content, assetRoot)
			if err != nil {
				return nil, &FilterError{Index: i, Reason: err.Error()}
			}
			g.Inputs = append(g.Inputs, in)
			src := strconv.Itoa(len(g.Inputs)) + ":v"
			if o.Width > 0 && o.Height > 0 {
				scaled := "img" + strconv.Itoa(i)
				stages = append(stages, fmt.Sprintf("[%s]scale=%d:%d[%s]", src, o.Width, o.Height, scaled))
				src = scaled
			}
			stages = append(stages, fmt.Sprintf("[%s][%s]overlay=x=main_w*%s:y=main_h*%s[%s]",
				label, src, x, y, next))

		default:
			return nil, &FilterError{Index: i, Reason: fmt.Sprintf("unsupported overlay type %q", o.Type)}
		}
		label = next
	}

	g.Expr = strings.Join(stages, ";")
	g.Output = label
	return g, nil
}

// imageInput accepts an http(s) URL with a host, or a path that resolves
// inside assetRoot. Everything else ffmpeg could open (file:, concat:, pipes,
// devices, arbitrary local paths) is refused.
func imageInput(src, assetRoot string) (FilterInput, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return FilterInput{}, fmt.Errorf("image source is empty")
	}
	for _, r := range src {
		if unicode.IsControl(r) {
			return FilterInput{}, fmt.Errorf("image source contains control character %U", r)
		}
	}

	if u, err := url.Parse(src); err == nil && u.Scheme != "" {
		if (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return FilterInput{Source: src, Protocols: remoteProtocols}, nil
		}
		return FilterInput{}, fmt.Errorf("image source scheme %q is not allowed", u.Scheme)
	}
	// A colon outside a URL is how ffmpeg selects protocols such as concat:.
	if strings.Contains(src, ":") {
		return FilterInput{}, fmt.Errorf("image source %q is not allowed", src)
	}
	if assetRoot == "" {
		return FilterInput{}, fmt.Errorf("local image sources are disabled")
	}

	root, err := filepath.Abs(assetRoot)
	if err != nil {
		return FilterInput{}, fmt.Errorf("resolve asset root: %w", err)
	}
	path := src
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if rel, err := filepath.Rel(root, path); err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return FilterInput{}, fmt.Errorf("image source %q is outside the asset directory", src)
	}
	return FilterInput{Source: path, Protocols: fileProtocols}, nil
}

// percent renders a 0-100 position as a 0-1 factor, clamped.
func percent(v float64) string {
	switch {
	case v < 0:
		v = 0
	case v > 100:
		v = 100
	}
	return strconv.FormatFloat(v/100, 'f', -1, 64)
}

var (
	// drawtext expands %{...} sequences in its text.
	expansionEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`)
	// option value inside a filter description.
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	// filter graph description.
	graphEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

// escapeDrawtext escapes overlay text for the three levels ffmpeg unescapes
// (text expansion, option value, filter graph). Control characters are rejected.
func escapeDrawtext(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("text content is empty")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("text content contains control character %U", r)
		}
	}
	return graphEscaper.Replace(optionEscaper.Replace(expansionEscaper.Replace(s))), nil
}
