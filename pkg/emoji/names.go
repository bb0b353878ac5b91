package emoji

// names maps code point sequences (base form) to curated Iconify icon names
// shared by the noto, twemoji and fluent-emoji sets.
var names = map[string]string{
	"1f600":                 "grinning-face",
	"1f603":                 "grinning-face-with-big-eyes",
	"1f604":                 "grinning-face-with-smiling-eyes",
	"1f601":                 "beaming-face-with-smiling-eyes",
	"1f602":                 "face-with-tears-of-joy",
	"1f60a":                 "smiling-face-with-smiling-eyes",
	"1f60d":                 "smiling-face-with-heart-eyes",
	"1f60e":                 "smiling-face-with-sunglasses",
	"1f914":                 "thinking-face",
	"1f929":                 "star-struck",
	"1f973":                 "partying-face",
	"1f680":                 "rocket",
	"1f525":                 "fire",
	"2728":                  "sparkles",
	"2b50":                  "star",
	"1f31f":                 "glowing-star",
	"2764":                  "red-heart",
	"1f49c":                 "purple-heart",
	"1f499":                 "blue-heart",
	"1f49a":                 "green-heart",
	"1f44d":                 "thumbs-up",
	"1f44e":                 "thumbs-down",
	"1f44b":                 "waving-hand",
	"1f44f":                 "clapping-hands",
	"1f64f":                 "folded-hands",
	"1f4aa":                 "flexed-biceps",
	"1f389":                 "party-popper",
	"1f38a":                 "confetti-ball",
	"1f381":                 "wrapped-gift",
	"1f3c6":                 "trophy",
	"1f4af":                 "hundred-points",
	"2705":                  "check-mark-button",
	"274c":                  "cross-mark",
	"26a0":                  "warning",
	"1f6a8":                 "police-car-light",
	"1f4a1":                 "light-bulb",
	"1f440":                 "eyes",
	"1f4bb":                 "laptop",
	"1f4da":                 "books",
	"1f4dd":                 "memo",
	"1f4c5":                 "calendar",
	"1f517":                 "link",
	"1f512":                 "locked",
	"1f511":                 "key",
	"2699":                  "gear",
	"1f6e0":                 "hammer-and-wrench",
	"1f4e6":                 "package",
	"1f4c8":                 "chart-increasing",
	"1f4b0":                 "money-bag",
	"1f48e":                 "gem-stone",
	"1f514":                 "bell",
	"1f4e3":                 "megaphone",
	"1f4ac":                 "speech-balloon",
	"2615":                  "hot-beverage",
	"1f355":                 "pizza",
	"1f382":                 "birthday-cake",
	"2600":                  "sun",
	"2601":                  "cloud",
	"1f308":                 "rainbow",
	"2744":                  "snowflake",
	"26a1":                  "high-voltage",
	"1f431":                 "cat-face",
	"1f436":                 "dog-face",
	"1f984":                 "unicorn",
	"1f30d":                 "globe-showing-europe-africa",
	"1f30e":                 "globe-showing-americas",
	"1f1fa-1f1f8":           "flag-united-states",
	"1f1ec-1f1e7":           "flag-united-kingdom",
	"1f1e9-1f1ea":           "flag-germany",
	"1f1eb-1f1f7":           "flag-france",
	"1f1ef-1f1f5":           "flag-japan",
	"31-20e3":               "keycap-1",
	"32-20e3":               "keycap-2",
	"33-20e3":               "keycap-3",
	"23-20e3":               "keycap-number-sign",
	"1f468-200d-1f4bb":      "man-technologist",
	"1f469-200d-1f4bb":      "woman-technologist",
	"1f3f3-fe0f-200d-1f308": "rainbow-flag",
}
