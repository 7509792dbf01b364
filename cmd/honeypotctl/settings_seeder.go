// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
)

// SeedSettings copies template to file when file does not exist.
//
// # Description
//
// The destination is opened with O_EXCL, so an existing settings file is
// never truncated even if it appears between the check and the copy. A
// partially written file is removed on failure.
//
// # Outputs
//
//   - bool: true when file was created
//   - error: *BootstrapError (ErrInstallationFailure)
func SeedSettings(file, template string) (bool, error) {
	if _, err := os.Lstat(file); err == nil {
		slog.Debug("Settings file exists", "file", file)
		return false, nil
	}

	src, err := os.Open(template)
	if err != nil {
		return false, newInstallError("settings",
			fmt.Sprintf("Cannot read settings template %s", template), err,
			fmt.Sprintf("Restore %s from the repository, or create %s by hand", template, file))
	}
	defer src.Close()

	perm := fs.FileMode(0644)
	if info, err := src.Stat(); err == nil {
		perm = info.Mode().Perm()
	}

	dst, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, newInstallError("settings",
			fmt.Sprintf("Cannot create %s", file), err,
			"Check the permissions of the working directory")
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(file)
		return false, newInstallError("settings",
			fmt.Sprintf("Failed to copy %s to %s", template, file), err, "")
	}
	if err := dst.Close(); err != nil {
		os.Remove(file)
		return false, newInstallError("settings",
			fmt.Sprintf("Failed to write %s", file), err, "")
	}

	slog.Info("Seeded settings file", "file", file, "template", template)
	return true, nil
}
