// Package models defines the domain types shared by the stylx client.
//
// The package contains two categories of types:
//
// 1. Values exchanged with the backend and identity provider
//   - [UserSession] : Provider identity merged with the backend user record
//   - [ImageResult] : One transformed image as listed in the gallery
//   - [GalleryPage] : A page of images plus authoritative [Pagination]
//   - [ProgressEvent] : Closed variant of [Partial] and [Completed] job progress
//
// 2. Persistent Entities
//   - [Transfer] : Local history of submitted jobs, keyed by client id
//
// Persistent entities implement the [Model] interface; [Repository] describes their CRUD surface.
package models
