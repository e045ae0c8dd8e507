package torznab

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Namespace is the Torznab attribute namespace.
const Namespace = "http://torznab.com/schemas/2015/feed"

// Channel describes the feed producer.
type Channel struct {
	Title       string
	Description string
	Link        string
}

// Item is one release in a Torznab feed.
type Item struct {
	Title           string
	GUID            string
	Link            string
	Comments        string
	Description     string
	PublishDate     time.Time
	Size            int64
	Category        int
	Seeders         int
	Peers           int
	InfoHash        string
	MagnetURI       string
	MinimumRatio    float64
	MinimumSeedTime time.Duration
}

// Torznab RSS structures
type rssFeed struct {
	XMLName      xml.Name   `xml:"rss"`
	Version      string     `xml:"version,attr"`
	XMLNSAtom    string     `xml:"xmlns:atom,attr"`
	XMLNSTorznab string     `xml:"xmlns:torznab,attr"`
	Channel      rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	GUID        string        `xml:"guid"`
	Link        string        `xml:"link,omitempty"`
	Comments    string        `xml:"comments,omitempty"`
	Description string        `xml:"description,omitempty"`
	PubDate     string        `xml:"pubDate"`
	Size        int64         `xml:"size"`
	Category    int           `xml:"category"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
	Attrs       []torznabAttr `xml:"torznab:attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// WriteFeed renders items as a Torznab RSS document.
func WriteFeed(w io.Writer, ch Channel, items []Item) error {
	feed := rssFeed{
		Version:      "2.0",
		XMLNSAtom:    "http://www.w3.org/2005/Atom",
		XMLNSTorznab: Namespace,
		Channel: rssChannel{
			Title:       ch.Title,
			Description: ch.Description,
			Link:        ch.Link,
			Items:       make([]rssItem, 0, len(items)),
		},
	}
	for _, it := range items {
		feed.Channel.Items = append(feed.Channel.Items, toRSSItem(it))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(feed); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	return enc.Flush()
}

func toRSSItem(it Item) rssItem {
	ri := rssItem{
		Title:       it.Title,
		GUID:        it.GUID,
		Link:        it.Link,
		Comments:    it.Comments,
		Description: it.Description,
		PubDate:     it.PublishDate.UTC().Format(time.RFC1123Z),
		Size:        it.Size,
		Category:    it.Category,
	}
	if it.Link != "" {
		ri.Enclosure = &rssEnclosure{URL: it.Link, Length: it.Size, Type: "application/x-bittorrent"}
	} else if it.MagnetURI != "" {
		ri.Link = it.MagnetURI
	}
	if ri.GUID == "" {
		ri.GUID = it.Comments
	}
	if ri.GUID == "" {
		ri.GUID = ri.Link
	}

	ri.Attrs = append(ri.Attrs,
		torznabAttr{"category", strconv.Itoa(it.Category)},
		torznabAttr{"size", strconv.FormatInt(it.Size, 10)},
		torznabAttr{"seeders", strconv.Itoa(it.Seeders)},
		torznabAttr{"peers", strconv.Itoa(it.Peers)},
	)
	if parent := Parent(it.Category); parent != it.Category && parent > 0 {
		ri.Attrs = append(ri.Attrs, torznabAttr{"category", strconv.Itoa(parent)})
	}
	if it.InfoHash != "" {
		ri.Attrs = append(ri.Attrs, torznabAttr{"infohash", it.InfoHash})
	}
	if it.MagnetURI != "" {
		ri.Attrs = append(ri.Attrs, torznabAttr{"magneturl", it.MagnetURI})
	}
	if it.MinimumRatio > 0 {
		ri.Attrs = append(ri.Attrs, torznabAttr{"minimumratio", strconv.FormatFloat(it.MinimumRatio, 'f', -1, 64)})
	}
	if it.MinimumSeedTime > 0 {
		ri.Attrs = append(ri.Attrs, torznabAttr{"minimumseedtime", strconv.FormatInt(int64(it.MinimumSeedTime/time.Second), 10)})
	}
	return ri
}
