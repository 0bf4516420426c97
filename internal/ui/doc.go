// Package ui implements the terminal galaxy viewer using bubbletea's Elm architecture.
//
// The [Model] owns a [viz.Session] drawn on an in-memory [scene.Stage]. Every frame tick advances
// the session, and View rasterizes the flattened scene into terminal cells through a [Canvas]:
// node cores become filled blocks, links dotted lines, stars dots, and additive layers (glows and
// nebulas) light the cell backgrounds.
//
// Two views are available:
//  1. [GalaxyView] : the animated galaxy with a status line for the polling loop
//  2. [ListView] : a filterable artist list; enter flies the camera to the chosen artist
//
// Polling updates flow through a channel from [tasks.GroupSync] and replace the artist set in place.
// Mouse input maps terminal cells to scene points for dragging, panning and wheel zoom.
package ui
