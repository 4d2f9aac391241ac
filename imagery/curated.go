package imagery

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// Curated picks from a fixed catalogue of Unsplash CDN images. It needs no
// network access and never fails for a non-empty catalogue.
type Curated struct {
	catalogue map[string][]string
	keywords  []categoryKeywords
	fallback  string
}

type categoryKeywords struct {
	category string
	terms    []string
}

var defaultCatalogue = map[string][]string{
	"ai_tech": {
		"https://images.unsplash.com/photo-1677442136019-21780ecad995",
		"https://images.unsplash.com/photo-1697577418970-95d99b5a55cf",
		"https://images.unsplash.com/photo-1718241905696-cb34c2c07bed",
		"https://images.unsplash.com/photo-1677756119517-756a188d2d94",
		"https://images.unsplash.com/photo-1535378917042-10a22c95931a",
		"https://images.unsplash.com/photo-1555255707-c07966088b7b",
	},
	"workspace": {
		"https://images.unsplash.com/photo-1498050108023-c5249f4df085",
		"https://images.unsplash.com/photo-1521737604893-d14cc237f11d",
		"https://images.unsplash.com/photo-1518770660439-4636190af475",
		"https://images.unsplash.com/photo-1461749280684-dccba630e2f6",
		"https://images.unsplash.com/photo-1486312338219-ce68d2c6f44d",
		"https://images.unsplash.com/photo-1496181133206-80ce9b88a853",
	},
	"learning": {
		"https://images.unsplash.com/photo-1513258496099-48168024aec0",
		"https://images.unsplash.com/photo-1501504905252-473c47e087f8",
		"https://images.unsplash.com/photo-1522202176988-66273c2fd55f",
		"https://images.unsplash.com/photo-1481627834876-b7833e8f5570",
		"https://images.unsplash.com/photo-1456513080510-7bf3a84b82f8",
	},
	"creative": {
		"https://images.unsplash.com/photo-1560421683-6856ea585c78",
		"https://images.unsplash.com/photo-1618005182384-a83a8bd57fbe",
		"https://images.unsplash.com/photo-1559028012-481c04fa702d",
		"https://images.unsplash.com/photo-1626447857058-2ba6a8868cb5",
		"https://images.unsplash.com/photo-1558618666-fcd25c85cd64",
	},
}

var defaultKeywords = []categoryKeywords{
	{"ai_tech", []string{"ai", "gpt", "llm", "tech", "robot", "automat", "machine learning", "인공지능", "기술", "자동"}},
	{"learning", []string{"learn", "study", "course", "education", "teach", "학습", "공부", "교육"}},
	{"workspace", []string{"work", "office", "business", "productiv", "career", "업무", "직장", "비즈니스"}},
}

func NewCurated() *Curated {
	return &Curated{
		catalogue: defaultCatalogue,
		keywords:  defaultKeywords,
		fallback:  "creative",
	}
}

func (c *Curated) Resolve(_ context.Context, topic string) (Asset, error) {
	images := c.catalogue[c.category(topic)]
	if len(images) == 0 {
		return Asset{}, ErrUnavailable
	}
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(topic))))
	base := images[int(h.Sum32()%uint32(len(images)))]
	return Asset{
		URL:         base + "?" + coverParams,
		Alt:         topic,
		Attribution: "Photo from Unsplash",
	}, nil
}

// category matches terms against word prefixes so "ai" does not hit "painting".
func (c *Curated) category(topic string) string {
	lower := strings.ToLower(topic)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, kw := range c.keywords {
		for _, term := range kw.terms {
			if strings.Contains(term, " ") {
				if strings.Contains(lower, term) {
					return kw.category
				}
				continue
			}
			for _, w := range words {
				if strings.HasPrefix(w, term) {
					return kw.category
				}
			}
		}
	}
	return c.fallback
}
