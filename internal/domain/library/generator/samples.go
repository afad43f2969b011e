package generator

import (
	"context"

	"cuentacuentos/internal/domain/library"
	"cuentacuentos/internal/domain/story"
)

// Builtin serves the small collection of stories shipped with the binary so
// narration works without any catalog configured.
type Builtin struct{}

var _ StoryGenerator = Builtin{}

func (Builtin) Name() string {
	return "builtin"
}

func (Builtin) Load(_ context.Context) (*library.StoryLibrary, error) {
	lib := SampleLibrary()
	return &lib, nil
}

// SampleLibrary returns the built-in stories, at least one per category.
func SampleLibrary() library.StoryLibrary {
	return library.StoryLibrary{
		Name: "Cuentos Clásicos",
		Stories: []story.Story{
			{
				ID:       "conejo-dormilon",
				Title:    "El Conejo Dormilón",
				Author:   "Tradicional",
				Category: story.Sleep,
				Content: "Había una vez un conejo que vivía al borde de un bosque tranquilo. " +
					"Cada noche, cuando la luna subía despacio sobre los árboles, el conejo " +
					"se acurrucaba en su madriguera y escuchaba el canto suave de los grillos. " +
					"Contaba las estrellas una a una hasta que sus ojos se cerraban solos. " +
					"Y así, arropado por el silencio del bosque, soñaba con prados llenos de tréboles.",
			},
			{
				ID:       "luna-y-estrella",
				Title:    "La Luna y la Estrella",
				Author:   "Tradicional",
				Category: story.Sleep,
				Content: "En lo alto del cielo, una pequeña estrella tenía miedo de la oscuridad. " +
					"La luna, que la quería mucho, le prometió brillar a su lado toda la noche. " +
					"Juntas iluminaron los tejados, los ríos y las ventanas de los niños dormidos.",
			},
			{
				ID:       "mono-bromista",
				Title:    "El Mono Bromista",
				Author:   "Tradicional",
				Category: story.Fun,
				Content: "En la selva vivía un mono al que le encantaba hacer bromas. " +
					"Escondía los plátanos del elefante, hacía cosquillas a la jirafa y " +
					"imitaba el rugido del león. Un día todos los animales le prepararon " +
					"una fiesta sorpresa, y el mono descubrió que reír juntos era la mejor broma de todas.",
			},
			{
				ID:       "tortuga-sabia",
				Title:    "La Tortuga Sabia",
				Author:   "Tradicional",
				Category: story.Educational,
				Content: "Una tortuga muy anciana enseñaba a los animales del lago. " +
					"Les explicaba por qué llueve, cómo crecen las plantas y por qué la luna cambia de forma. " +
					"Los animales aprendieron que hacer preguntas es el primer paso para entender el mundo.",
			},
			{
				ID:       "pirata-valiente",
				Title:    "El Pirata Valiente",
				Author:   "Tradicional",
				Category: story.Adventure,
				Content: "El pequeño pirata Tomás navegaba en un barco de madera con un loro parlanchín. " +
					"Siguiendo un mapa antiguo cruzaron tormentas, islas de arena blanca y cuevas misteriosas. " +
					"Al final encontraron el tesoro: un cofre lleno de libros de cuentos para compartir.",
			},
		},
	}
}
