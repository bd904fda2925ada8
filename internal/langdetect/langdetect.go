// Package langdetect guesses the programming language of generated text.
package langdetect

import (
	"regexp"
	"strings"
)

// Language is a detected language and the file extension used for it.
type Language struct {
	Name string
	Ext  string
}

// Text is returned when nothing matches.
var Text = Language{Name: "text", Ext: ".txt"}

type rule struct {
	lang Language
	re   *regexp.Regexp
}

// Rules are tried in order; more specific languages come before the ones
// whose syntax they overlap.
var rules = []rule{
	{Language{"php", ".php"}, regexp.MustCompile(`<\?php`)},
	{Language{"xml", ".xml"}, regexp.MustCompile(`<\?xml`)},
	{Language{"html", ".html"}, regexp.MustCompile(`(?i)<!DOCTYPE html|<(html|head|body|div|span|script)[\s>]`)},
	{Language{"bash", ".sh"}, regexp.MustCompile(`(?m)^#!/(usr/)?bin/(env )?(ba)?sh|^\s*(fi|done|esac)\s*$`)},
	{Language{"powershell", ".ps1"}, regexp.MustCompile(`\b(Get|Set|New|Remove|Write)-[A-Z]\w+|\$PSVersionTable`)},
	{Language{"go", ".go"}, regexp.MustCompile(`(?m)^package \w+\s*$|\bfunc (\(\w+ \*?\w+\) )?\w+\([^):]*\)[^{\n]*\{|\w+ := `)},
	{Language{"rust", ".rs"}, regexp.MustCompile(`\bfn \w+(<[^>]*>)?\(|\blet mut \b|\bimpl\b.*\{|println!\(`)},
	{Language{"swift", ".swift"}, regexp.MustCompile(`\bfunc \w+\([^)]*:\s*\w+|\bguard let\b|\bif let\b|\bimport (SwiftUI|Foundation|UIKit)\b`)},
	{Language{"kotlin", ".kt"}, regexp.MustCompile(`\bfun \w+\(|\bdata class\b|\bcompanion object\b`)},
	{Language{"scala", ".scala"}, regexp.MustCompile(`\bcase class\b|\bobject \w+ extends\b|\bdef \w+(\[[^\]]*\])?\([^)]*\)\s*:\s*\w+\s*=`)},
	{Language{"python", ".py"}, regexp.MustCompile(`(?m)^\s*(async\s+)?def \w+\(.*\)\s*(->\s*[^:]+)?:\s*$|^\s*class \w+(\(.*\))?:\s*$|^\s*from [\w.]+ import |^\s*import \w+\s*$|if __name__ == .__main__.`)},
	{Language{"ruby", ".rb"}, regexp.MustCompile(`(?m)^\s*end\s*$|\bputs\b|\battr_accessor\b|^\s*require ['"]`)},
	{Language{"typescript", ".ts"}, regexp.MustCompile(`(?m)^\s*(export )?interface \w+|:\s*(string|number|boolean|any)\b[;,)=\s]|^\s*(export )?type \w+ =`)},
	{Language{"javascript", ".js"}, regexp.MustCompile(`\bfunction\s*\w*\s*\(|\b(const|let|var) \w+\s*=|console\.\w+\(|=>|\bmodule\.exports\b|\brequire\(`)},
	{Language{"java", ".java"}, regexp.MustCompile(`\bpublic (static )?(class|void|interface)\b|\bSystem\.out\.print`)},
	{Language{"cpp", ".cpp"}, regexp.MustCompile(`#include <(iostream|vector|string|map|memory)>|\bstd::|\busing namespace\b|\bcout\s*<<`)},
	{Language{"c", ".c"}, regexp.MustCompile(`#include <\w+\.h>|\bprintf\(|\bmalloc\(`)},
	{Language{"css", ".css"}, regexp.MustCompile(`(?m)^\s*[.#]?[a-zA-Z][\w-]*(\s*[,>+~]?\s*[.#]?[\w-]+)*\s*\{\s*$|@media\b|@keyframes\b|@import\b`)},
	{Language{"sql", ".sql"}, regexp.MustCompile(`(?i)\b(SELECT .+ FROM|INSERT INTO|UPDATE \w+ SET|DELETE FROM|CREATE TABLE|DROP TABLE|ALTER TABLE)\b`)},
	{Language{"json", ".json"}, regexp.MustCompile(`\A\s*[\{\[]\s*["\{\[\d]`)},
	{Language{"markdown", ".md"}, regexp.MustCompile(`(?m)^#{1,6} \S|^\s*[-*] \S`)},
	{Language{"yaml", ".yml"}, regexp.MustCompile(`(?m)\A(---\s*\n)?\s*[A-Za-z_][\w-]*:(\s+\S.*)?\n\s*[A-Za-z_-][\w-]*:`)},
}

var fence = regexp.MustCompile("```([A-Za-z0-9_+#-]+)")

var aliases = map[string]string{
	"py":      "python",
	"python3": "python",
	"js":      "javascript",
	"node":    "javascript",
	"ts":      "typescript",
	"sh":      "bash",
	"shell":   "bash",
	"zsh":     "bash",
	"golang":  "go",
	"rs":      "rust",
	"c++":     "cpp",
	"yml":     "yaml",
	"md":      "markdown",
	"rb":      "ruby",
	"kt":      "kotlin",
	"ps1":     "powershell",
}

// Classify returns the best guess for text. It never fails.
func Classify(text string) Language {
	if m := fence.FindStringSubmatch(text); m != nil {
		tag := strings.ToLower(m[1])
		if a, ok := aliases[tag]; ok {
			tag = a
		}
		for _, r := range rules {
			if r.lang.Name == tag {
				return r.lang
			}
		}
		return Language{Name: tag, Ext: "." + tag}
	}
	for _, r := range rules {
		if r.re.MatchString(text) {
			return r.lang
		}
	}
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "function", "var ", "console"):
		return Language{"javascript", ".js"}
	case containsAny(lower, "def ", "import ", "print"):
		return Language{"python", ".py"}
	case containsAny(lower, "<html", "<div", "<body"):
		return Language{"html", ".html"}
	case containsAny(lower, "color:", "background:"):
		return Language{"css", ".css"}
	}
	return Text
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Ext returns the extension for a language name, or ".txt".
func Ext(name string) string {
	for _, r := range rules {
		if r.lang.Name == name {
			return r.lang.Ext
		}
	}
	if name == "" || name == Text.Name || name == "unknown" {
		return Text.Ext
	}
	return "." + name
}
