package references

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	urlkit "github.com/goliatone/go-urlkit"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// Linker maps a resolved entity to a navigation target.
type Linker interface {
	Link(entity *interfaces.Entity) (string, error)
}

// PathLinker builds GitLab style paths, optionally prefixed with BaseURL:
//
//	/acme/web/-/issues/42
//	/acme/web/-/merge_requests/7
//	/acme/web/-/milestones/3
//	/acme/web/-/commit/1a2b3c4
//	/fred
type PathLinker struct {
	BaseURL string
}

// Link implements Linker.
func (l PathLinker) Link(entity *interfaces.Entity) (string, error) {
	if entity == nil {
		return "", fmt.Errorf("%w: nil entity", ErrUnsupportedKind)
	}

	var path string
	switch entity.Kind {
	case interfaces.ReferenceUser:
		path = "/" + url.PathEscape(entity.Key)
	case interfaces.ReferenceIssue:
		path = projectPath(entity.ProjectPath) + "/-/issues/" + url.PathEscape(entity.Key)
	case interfaces.ReferenceMergeRequest:
		path = projectPath(entity.ProjectPath) + "/-/merge_requests/" + url.PathEscape(entity.Key)
	case interfaces.ReferenceMilestone:
		path = projectPath(entity.ProjectPath) + "/-/milestones/" + url.PathEscape(entity.Key)
	case interfaces.ReferenceCommit:
		path = projectPath(entity.ProjectPath) + "/-/commit/" + url.PathEscape(entity.Key)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, entity.Kind)
	}
	return strings.TrimRight(l.BaseURL, "/") + path, nil
}

func projectPath(full string) string {
	segments := strings.Split(strings.Trim(full, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return "/" + strings.Join(segments, "/")
}

// URLKitLinker builds targets from a go-urlkit route group. The group must
// declare one route per kind, named after the kind ("issue",
// "merge_request", "milestone", "commit", "user"). Project routes receive the
// :namespace, :project and :id params; the user route receives :username.
type URLKitLinker struct {
	manager   *urlkit.RouteManager
	groupPath string

	once  sync.Once
	group *urlkit.Group
	err   error
}

// NewURLKitLinker constructs a linker over the given route manager and
// dotted group path (e.g. "frontend" or "frontend.projects").
func NewURLKitLinker(manager *urlkit.RouteManager, groupPath string) *URLKitLinker {
	return &URLKitLinker{manager: manager, groupPath: strings.TrimSpace(groupPath)}
}

// Link implements Linker.
func (l *URLKitLinker) Link(entity *interfaces.Entity) (string, error) {
	if entity == nil || !entity.Kind.Valid() {
		return "", fmt.Errorf("%w: invalid entity", ErrUnsupportedKind)
	}
	group, err := l.resolveGroup()
	if err != nil {
		return "", err
	}
	builder, err := safeBuilder(group, string(entity.Kind))
	if err != nil {
		return "", err
	}

	if entity.Kind == interfaces.ReferenceUser {
		builder.WithParam("username", entity.Key)
	} else {
		scope := interfaces.ParseProjectScope(entity.ProjectPath)
		builder.WithParam("namespace", scope.Namespace)
		builder.WithParam("project", scope.Project)
		builder.WithParam("id", entity.Key)
	}
	return builder.Build()
}

func (l *URLKitLinker) resolveGroup() (*urlkit.Group, error) {
	l.once.Do(func() {
		if l.manager == nil {
			l.err = fmt.Errorf("references: route manager not configured")
			return
		}
		parts := strings.Split(l.groupPath, ".")
		current, err := lookupGroup(l.manager, parts[0])
		for _, part := range parts[1:] {
			if err != nil {
				break
			}
			current, err = lookupChildGroup(current, part)
		}
		l.group, l.err = current, err
	})
	return l.group, l.err
}

func safeBuilder(group *urlkit.Group, route string) (builder *urlkit.Builder, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("references: urlkit route %q not available: %v", route, rec)
		}
	}()
	builder = group.Builder(route)
	return builder, err
}

func lookupGroup(manager *urlkit.RouteManager, name string) (group *urlkit.Group, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("references: route group %q not found", name)
		}
	}()
	group = manager.Group(name)
	return group, err
}

func lookupChildGroup(parent *urlkit.Group, name string) (group *urlkit.Group, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("references: child group %q not found", name)
		}
	}()
	group = parent.Group(name)
	return group, err
}
