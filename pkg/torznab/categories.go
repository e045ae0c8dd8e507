// Package torznab holds the Torznab category taxonomy and renders release feeds
// in the Torznab RSS dialect consumed by aggregators.
package torznab

import "sort"

// Category is one entry of the fixed Torznab category taxonomy.
type Category struct {
	ID   int
	Name string
}

// Movie and TV categories. IDs are part of the external contract and never change.
var (
	Movies        = Category{2000, "Movies"}
	MoviesForeign = Category{2010, "Movies/Foreign"}
	MoviesOther   = Category{2020, "Movies/Other"}
	MoviesSD      = Category{2030, "Movies/SD"}
	MoviesHD      = Category{2040, "Movies/HD"}
	MoviesUHD     = Category{2045, "Movies/UHD"}
	MoviesBluRay  = Category{2050, "Movies/BluRay"}
	Movies3D      = Category{2060, "Movies/3D"}
	MoviesDVD     = Category{2070, "Movies/DVD"}
	MoviesWEBDL   = Category{2080, "Movies/WEB-DL"}

	TV            = Category{5000, "TV"}
	TVWEBDL       = Category{5010, "TV/WEB-DL"}
	TVForeign     = Category{5020, "TV/Foreign"}
	TVSD          = Category{5030, "TV/SD"}
	TVHD          = Category{5040, "TV/HD"}
	TVUHD         = Category{5045, "TV/UHD"}
	TVOther       = Category{5050, "TV/Other"}
	TVSport       = Category{5060, "TV/Sport"}
	TVAnime       = Category{5070, "TV/Anime"}
	TVDocumentary = Category{5080, "TV/Documentary"}
)

var byID = func() map[int]Category {
	all := []Category{
		Movies, MoviesForeign, MoviesOther, MoviesSD, MoviesHD, MoviesUHD, MoviesBluRay, Movies3D, MoviesDVD, MoviesWEBDL,
		TV, TVWEBDL, TVForeign, TVSD, TVHD, TVUHD, TVOther, TVSport, TVAnime, TVDocumentary,
	}
	m := make(map[int]Category, len(all))
	for _, c := range all {
		m[c.ID] = c
	}
	return m
}()

// Lookup returns the category with the given ID.
func Lookup(id int) (Category, bool) {
	c, ok := byID[id]
	return c, ok
}

// Parent returns the top-level category ID (2040 -> 2000).
func Parent(id int) int {
	return id / 1000 * 1000
}

// IsMovie reports whether id belongs to the Movies tree.
func IsMovie(id int) bool { return Parent(id) == Movies.ID }

// IsTV reports whether id belongs to the TV tree.
func IsTV(id int) bool { return Parent(id) == TV.ID }

// Subcategories returns the known children of a top-level category, ordered by ID.
func Subcategories(parent int) []Category {
	var subs []Category
	for id, c := range byID {
		if id != parent && Parent(id) == parent {
			subs = append(subs, c)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs
}
