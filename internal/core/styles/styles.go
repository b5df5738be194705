// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"sort"

	glamouransi "github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

// Palette defines a minimal semantic theme palette as hex colors.
type Palette struct {
	Primary    string
	Secondary  string
	Foreground string
	Muted      string
	Surface    string
	Success    string
	Warning    string
	Error      string
}

// DefaultTheme is the name of the default theme.
const DefaultTheme = "tokyo-night"

// themes holds the built-in named palettes.
var themes = map[string]Palette{
	"tokyo-night": {
		Primary:    "#7aa2f7",
		Secondary:  "#7dcfff",
		Foreground: "#c0caf5",
		Muted:      "#565f89",
		Surface:    "#3b4261",
		Success:    "#9ece6a",
		Warning:    "#e0af68",
		Error:      "#f7768e",
	},
	"gruvbox": {
		Primary:    "#83a598",
		Secondary:  "#8ec07c",
		Foreground: "#ebdbb2",
		Muted:      "#665c54",
		Surface:    "#3c3836",
		Success:    "#b8bb26",
		Warning:    "#fabd2f",
		Error:      "#fb4934",
	},
}

// ThemeNames returns sorted names of all built-in themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPalette returns the palette for the given theme name.
func GetPalette(name string) (Palette, bool) {
	p, ok := themes[name]
	return p, ok
}

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

// Style exports.
var (
	HeaderStyle   lipgloss.Style
	LocationStyle lipgloss.Style
	MutedStyle    lipgloss.Style
	PendingStyle  lipgloss.Style
	ResolvedStyle lipgloss.Style
	ErrorStyle    lipgloss.Style
	DividerStyle  lipgloss.Style
)

// authorPool is used for deterministic color hashing of comment authors.
var authorPool []lipgloss.Color

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	HeaderStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Primary)).
		Bold(true)
	LocationStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Secondary))
	MutedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Muted))
	PendingStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Warning)).
		Italic(true)
	ResolvedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Success))
	ErrorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Error))
	DividerStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Surface))

	authorPool = []lipgloss.Color{
		lipgloss.Color(p.Primary),
		lipgloss.Color(p.Secondary),
		lipgloss.Color(p.Success),
		lipgloss.Color(p.Warning),
	}
}

// AuthorStyle returns a bold style with a deterministic color for name.
// The same name always produces the same color.
func AuthorStyle(name string) lipgloss.Style {
	var hash uint32
	for _, c := range name {
		hash = hash*31 + uint32(c)
	}
	return lipgloss.NewStyle().
		Foreground(authorPool[hash%uint32(len(authorPool))]).
		Bold(true)
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(themes[DefaultTheme])
}

func hexPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GlamourStyle returns a Glamour style config derived from the active theme.
func GlamourStyle() glamouransi.StyleConfig {
	cfg := glamourstyles.DarkStyleConfig
	p := CurrentPalette

	fg := hexPtr(p.Foreground)
	primary := hexPtr(p.Primary)
	secondary := hexPtr(p.Secondary)
	muted := hexPtr(p.Muted)

	cfg.Document.Color = fg
	cfg.Document.Margin = nil
	cfg.Paragraph.Color = fg

	cfg.Heading.Color = primary
	cfg.H1.Color = primary
	cfg.H1.BackgroundColor = nil

	cfg.BlockQuote.Color = muted
	cfg.HorizontalRule.Color = muted

	cfg.Link.Color = secondary
	cfg.LinkText.Color = secondary

	cfg.Code.Color = secondary
	cfg.CodeBlock.Color = muted

	return cfg
}
