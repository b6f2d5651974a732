package verify

import (
	"strings"

	"verifyctl/pkg/api"
)

// Submission is what a run verifies: either local files or a published
// package reference. The two shapes never mix.
type Submission interface {
	request() api.SubmitRunRequest
}

// LocalFiles uploads file contents with the run.
type LocalFiles struct {
	ProjectType string
	PackageName string
	Source      string
	Files       []api.File
}

// PackageRef verifies an already published artifact.
type PackageRef struct {
	ProjectType string
	Ref         string
}

// NewLocalFiles validates and builds a local-files submission.
func NewLocalFiles(projectType, packageName, source string, files []api.File) (LocalFiles, error) {
	if strings.TrimSpace(projectType) == "" {
		return LocalFiles{}, Usagef("a project type is required (use --type or set `type` in verify.yaml)")
	}
	if len(files) == 0 {
		return LocalFiles{}, Usagef("no files to upload")
	}
	return LocalFiles{
		ProjectType: projectType,
		PackageName: packageName,
		Source:      source,
		Files:       files,
	}, nil
}

// NewPackageRef validates and builds a package-reference submission.
func NewPackageRef(projectType, ref string) (PackageRef, error) {
	if strings.TrimSpace(projectType) == "" {
		return PackageRef{}, Usagef("--type is required when verifying a package reference")
	}
	if strings.TrimSpace(ref) == "" {
		return PackageRef{}, Usagef("package reference is empty")
	}
	return PackageRef{ProjectType: projectType, Ref: ref}, nil
}

func (s LocalFiles) request() api.SubmitRunRequest {
	return api.SubmitRunRequest{
		ProjectType: s.ProjectType,
		PackageName: s.PackageName,
		Source:      s.Source,
		Files:       s.Files,
	}
}

func (s PackageRef) request() api.SubmitRunRequest {
	return api.SubmitRunRequest{
		ProjectType: s.ProjectType,
		PackageRef:  s.Ref,
	}
}
