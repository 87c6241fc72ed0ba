// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI browses the signed-in user's gallery and runs style transfers:
//  1. [GalleryView] : Page, sort, open and delete transformed images
//  2. [ConfirmView] : Confirm a deletion before anything is sent to the backend
//  3. [StyleListView] : Pick a predefined style for the content image
//  4. [TransferView] : Monitor real-time progress updates
//  5. [ResultView] : Display the result or the error with a retry key
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the TransferEngine, providing non-blocking status reporting during transfers.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
