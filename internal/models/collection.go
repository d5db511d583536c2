package models

// Collection names one of the synced record stores. Values double as local
// table names and remote collection paths.
type Collection string

const (
	CollectionProjects      Collection = "projects"
	CollectionChapters      Collection = "chapters"
	CollectionScenes        Collection = "scenes"
	CollectionCharacters    Collection = "characters"
	CollectionPlots         Collection = "plots"
	CollectionWorldbuilding Collection = "worldbuilding"
)

// SyncOrder returns the synced collections parents-first. Bulk
// reconciliation walks them in this order so foreign references land after
// their targets.
func SyncOrder() []Collection {
	return []Collection{
		CollectionProjects,
		CollectionChapters,
		CollectionScenes,
		CollectionCharacters,
		CollectionPlots,
		CollectionWorldbuilding,
	}
}

// ProjectScoped returns the collections subscribed per open project, i.e.
// every synced collection except the top-level projects one.
func ProjectScoped() []Collection {
	return []Collection{
		CollectionChapters,
		CollectionScenes,
		CollectionCharacters,
		CollectionPlots,
		CollectionWorldbuilding,
	}
}

func (c Collection) Valid() bool {
	switch c {
	case CollectionProjects, CollectionChapters, CollectionScenes,
		CollectionCharacters, CollectionPlots, CollectionWorldbuilding:
		return true
	}
	return false
}
