// package formatter renders artist lists, rooms and galaxy statistics for the CLI (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/cosmic/internal/models"
)

// SoloName is the base filename of exports made without a room.
const SoloName = "solo"

// ExportToCSV converts artists to CSV with columns: ID, Name, Popularity, Genres, Image.
// Genres are joined with semicolons.
func ExportToCSV(artists []models.ArtistRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Popularity", "Genres", "Image"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range artists {
		record := []string{
			a.ID,
			a.Name,
			strconv.Itoa(a.Popularity),
			strings.Join(a.Genres, ";"),
			a.ImageURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func roomTitle(room models.Room) string {
	if room.Code == "" {
		return "Solo galaxy"
	}
	return "Galaxy " + room.Code
}

// ExportToMarkdown converts a room to Markdown with an optional cover image.
func ExportToMarkdown(room models.Room, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer
	artists := room.Artists()

	fmt.Fprintf(&buf, "# %s\n\n", roomTitle(room))

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Members**: %d\n", len(room.Members))
	fmt.Fprintf(&buf, "**Artists**: %d\n\n", len(artists))

	if len(room.Members) > 0 {
		buf.WriteString("## Members\n\n")
		for _, m := range room.Members {
			fmt.Fprintf(&buf, "- %s (%d artists)\n", memberName(m), len(m.Artists))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Artists\n\n")
	for i, a := range artists {
		genres := ""
		if len(a.Genres) > 0 {
			genres = fmt.Sprintf(" (%s)", strings.Join(a.Genres, ", "))
		}
		fmt.Fprintf(&buf, "%d. %s%s [%d]\n", i+1, a.Name, genres, a.Popularity)
	}

	return buf.Bytes(), nil
}

func memberName(m models.Member) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ID
}

// ExportToText converts artists to a numbered plain text list.
func ExportToText(artists []models.ArtistRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Artists: %d\n\n", len(artists))
	for i, a := range artists {
		fmt.Fprintf(&buf, "%d. %s", i+1, a.Name)
		if len(a.Genres) > 0 {
			fmt.Fprintf(&buf, " - %s", strings.Join(a.Genres, ", "))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MemberSummary is one member line of the room metadata.
type MemberSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Artists     int    `json:"artists"`
}

// RoomMetadata describes a room without its artist lists.
type RoomMetadata struct {
	Code    string          `json:"code,omitempty"`
	Members []MemberSummary `json:"members"`
	Artists int             `json:"artists"`
}

// ToMetadataJSON generates an indented JSON summary of the room (without artists)
func ToMetadataJSON(room models.Room) ([]byte, error) {
	meta := RoomMetadata{Code: room.Code, Members: []MemberSummary{}, Artists: len(room.Artists())}
	for _, m := range room.Members {
		meta.Members = append(meta.Members, MemberSummary{ID: m.ID, DisplayName: m.DisplayName, Artists: len(m.Artists)})
	}
	return json.MarshalIndent(meta, "", "  ")
}

func baseName(room models.Room) string {
	if room.Code == "" {
		return SoloName
	}
	return room.Code
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ArtistsFile  string
	MetadataFile string
}

// WriteCSVExport exports a room's merged artists to CSV with an accompanying metadata JSON file.
//
// Defaults to the room code (or "solo") as the base filename & creates {base}_artists.csv and {base}_metadata.json
func WriteCSVExport(room models.Room, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = baseName(room)
	}

	csvData, err := ExportToCSV(room.Artists())
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	artistsFile := baseFilepath + "_artists.csv"
	if err := os.WriteFile(artistsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(room)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		ArtistsFile:  artistsFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a room to Markdown in a dedicated directory.
//
// Directory name defaults to the room code. When imageURL is empty the first artist image is used
// as the cover; a failed download is logged to warn and skipped.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(room models.Room, outputDir, imageURL string, warn io.Writer) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = baseName(room)
	}
	if warn == nil {
		warn = io.Discard
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	if imageURL == "" {
		for _, a := range room.Artists() {
			if a.ImageURL != "" {
				imageURL = a.ImageURL
				break
			}
		}
	}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(warn, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(warn, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(room, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports artists to plain text.
//
// Defaults to solo_artists.txt as the filename.
func WriteTextExport(artists []models.ArtistRecord, path string) (string, error) {
	if path == "" {
		path = SoloName + "_artists.txt"
	}

	textData, err := ExportToText(artists)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
