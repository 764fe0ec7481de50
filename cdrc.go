// cdrc.go: package-level constants for cdrc
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

// Version of the cdrc library.
const Version = "v0.1.0-dev"
