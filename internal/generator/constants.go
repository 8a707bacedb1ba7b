package generator

import "math/rand"

// Фиксированные перечисления жанров и тональностей для затравки новой истории.
var (
	genres = []string{
		"Fantasy",
		"Science Fiction",
		"Mystery",
		"Thriller",
		"Romance",
		"Horror",
		"Adventure",
		"Drama",
		"Historical Fiction",
		"Slice of Life",
		"Biography",
		"Comedy",
	}

	tones = []string{
		"Dark",
		"Hopeful",
		"Melancholic",
		"Whimsical",
		"Suspenseful",
		"Bittersweet",
		"Uplifting",
		"Tense",
		"Nostalgic",
		"Mysterious",
	}
)

// RandomGenres выбирает два жанра равномерно, повторы допустимы.
func RandomGenres() []string {
	return []string{
		genres[rand.Intn(len(genres))],
		genres[rand.Intn(len(genres))],
	}
}

// RandomTone выбирает одну тональность равномерно.
func RandomTone() string {
	return tones[rand.Intn(len(tones))]
}
