package confidence

import "strings"

// extensionCategories maps common file extensions to the category family they
// usually belong to. Used only as a weak agreement signal against the
// prototype suggestion.
var extensionCategories = map[string]string{
	"pdf":  "documents",
	"doc":  "documents",
	"docx": "documents",
	"txt":  "documents",
	"md":   "documents",
	"rtf":  "documents",
	"odt":  "documents",

	"xls":  "spreadsheets",
	"xlsx": "spreadsheets",
	"csv":  "spreadsheets",
	"ods":  "spreadsheets",

	"ppt":  "presentations",
	"pptx": "presentations",
	"key":  "presentations",

	"jpg":  "images",
	"jpeg": "images",
	"png":  "images",
	"gif":  "images",
	"webp": "images",
	"heic": "images",
	"svg":  "images",
	"raw":  "images",

	"mp4": "videos",
	"mov": "videos",
	"avi": "videos",
	"mkv": "videos",

	"mp3":  "audio",
	"wav":  "audio",
	"flac": "audio",
	"m4a":  "audio",

	"zip": "archives",
	"tar": "archives",
	"gz":  "archives",
	"rar": "archives",
	"7z":  "archives",
	"dmg": "archives",
	"iso": "archives",

	"go":    "code",
	"py":    "code",
	"js":    "code",
	"ts":    "code",
	"rs":    "code",
	"c":     "code",
	"cpp":   "code",
	"h":     "code",
	"java":  "code",
	"swift": "code",
	"rb":    "code",
	"sh":    "code",
	"json":  "code",
	"yaml":  "code",
	"yml":   "code",
	"toml":  "code",
	"sql":   "code",

	"ttf":  "fonts",
	"otf":  "fonts",
	"woff": "fonts",

	"app": "applications",
	"exe": "applications",
	"pkg": "applications",
}

// extensionBonus scores the extension signal against the suggested category:
// 1.0 when the known extension family overlaps the suggestion (substring,
// case-insensitive, either direction), 0.5 when the extension is known but
// disagrees, 0.3 when the extension is unknown.
func extensionBonus(extension, suggestedCategory string) float64 {
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	family, known := extensionCategories[ext]
	if !known {
		return 0.3
	}
	if suggestedCategory == "" {
		return 0.5
	}
	suggested := strings.ToLower(suggestedCategory)
	if strings.Contains(suggested, family) || strings.Contains(family, suggested) {
		return 1.0
	}
	return 0.5
}
