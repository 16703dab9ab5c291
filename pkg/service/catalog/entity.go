package catalog

import (
	"github.com/secmon-lab/citadel/pkg/domain/model"
)

var (
	statusValues = []string{"Alive", "Dead"}
	genderValues = []string{"Female", "Male", "Genderless"}

	originCues   = []string{"originally from", "hails from", "born in", "born on"}
	locationCues = []string{"lives in", "resides in", "last seen in", "last seen at", "currently in"}
)

func characterEntity(key model.EntityKey, c *apiCharacter) *model.Entity {
	e := &model.Entity{
		Key:  key,
		Name: c.Name,
		Attributes: []model.Attribute{
			{Key: "Status", Value: c.Status, Alternatives: statusValues},
			{Key: "Species", Value: c.Species},
			{Key: "Gender", Value: c.Gender, Alternatives: genderValues},
			{Key: "Type", Value: c.Type},
		},
		Counts: []model.Count{
			{Label: "Episodes", Value: len(c.Episode)},
		},
	}
	if c.Origin.Name != "" {
		e.Relationships = append(e.Relationships, model.Relationship{
			Label: "Origin", Values: []string{c.Origin.Name}, Cues: originCues,
		})
	}
	if c.Location.Name != "" {
		e.Relationships = append(e.Relationships, model.Relationship{
			Label: "Last known location", Values: []string{c.Location.Name}, Cues: locationCues,
		})
	}
	return e
}

func locationEntity(key model.EntityKey, l *apiLocation, residents []string) *model.Entity {
	e := &model.Entity{
		Key:  key,
		Name: l.Name,
		Attributes: []model.Attribute{
			{Key: "Type", Value: l.Type},
			{Key: "Dimension", Value: l.Dimension},
		},
		Counts: []model.Count{
			{Label: "Residents", Value: len(l.Residents)},
		},
	}
	if len(residents) > 0 {
		e.Relationships = append(e.Relationships, model.Relationship{Label: "Residents", Values: residents})
	}
	return e
}

func episodeEntity(key model.EntityKey, ep *apiEpisode, characters []string) *model.Entity {
	e := &model.Entity{
		Key:  key,
		Name: ep.Name,
		Attributes: []model.Attribute{
			{Key: "Episode", Value: ep.Episode},
			{Key: "Air date", Value: ep.AirDate},
		},
		Counts: []model.Count{
			{Label: "Characters", Value: len(ep.Characters)},
		},
	}
	if len(characters) > 0 {
		e.Relationships = append(e.Relationships, model.Relationship{Label: "Characters", Values: characters})
	}
	return e
}
