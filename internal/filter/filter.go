// Package filter 把逻辑视图(根目录/分类/收藏/回收站/搜索)转换为文件查询条件
package filter

import (
	"strings"

	"cloud-drive/internal/model"
)

// ViewKind 保留的逻辑视图名
type ViewKind string

const (
	ViewImages    ViewKind = "images"
	ViewVideos    ViewKind = "videos"
	ViewAudio     ViewKind = "audio"
	ViewDocuments ViewKind = "documents"
	ViewFolders   ViewKind = "folders"
	ViewStarred   ViewKind = "starred"
	ViewTrash     ViewKind = "trash"
)

var reservedViews = map[string]ViewKind{
	string(ViewImages):    ViewImages,
	string(ViewVideos):    ViewVideos,
	string(ViewAudio):     ViewAudio,
	string(ViewDocuments): ViewDocuments,
	string(ViewFolders):   ViewFolders,
	string(ViewStarred):   ViewStarred,
	string(ViewTrash):     ViewTrash,
}

// RefKind FolderRef的标签
type RefKind int

const (
	RefRoot RefKind = iota
	RefByID
	RefView
)

// FolderRef 目录引用: 根目录, 真实文件夹ID, 或保留视图
type FolderRef struct {
	Kind RefKind
	ID   string
	View ViewKind
}

func Root() FolderRef               { return FolderRef{Kind: RefRoot} }
func ByID(id string) FolderRef      { return FolderRef{Kind: RefByID, ID: id} }
func View(kind ViewKind) FolderRef  { return FolderRef{Kind: RefView, View: kind} }
func (r FolderRef) IsRoot() bool    { return r.Kind == RefRoot }
func (r FolderRef) IsFolder() bool  { return r.Kind == RefByID }
func (r FolderRef) Is(v ViewKind) bool {
	return r.Kind == RefView && r.View == v
}

// IsReserved 判断名字是否为保留目录名(包括root)
func IsReserved(name string) bool {
	if name == model.RootFolder {
		return true
	}
	_, ok := reservedViews[name]
	return ok
}

// ParseFolderRef 解析请求中的folder参数
func ParseFolderRef(s string) FolderRef {
	s = strings.TrimSpace(s)
	if s == "" || s == model.RootFolder {
		return Root()
	}
	if v, ok := reservedViews[s]; ok {
		return View(v)
	}
	return ByID(s)
}

// String 还原为请求参数形式
func (r FolderRef) String() string {
	switch r.Kind {
	case RefByID:
		return r.ID
	case RefView:
		return string(r.View)
	default:
		return model.RootFolder
	}
}

// ParentValue 上传/新建文件夹时写入parent字段的值
// 保留视图一律落到root
func (r FolderRef) ParentValue() string {
	if r.Kind == RefByID {
		return r.ID
	}
	return model.RootFolder
}

// Options 过滤选项
type Options struct {
	Folder  FolderRef
	Starred bool
	Trashed bool
	Search  string
}

// OptionsFor 根据目录引用推导收藏/回收站标志
func OptionsFor(ref FolderRef, search string) Options {
	return Options{
		Folder:  ref,
		Starred: ref.Is(ViewStarred),
		Trashed: ref.Is(ViewTrash),
		Search:  search,
	}
}

// TrashMode 回收站条件
type TrashMode int

const (
	// isTrashed != true
	TrashExclude TrashMode = iota
	// isTrashed = true
	TrashOnly
)

// Predicate 交给记录存储执行的查询条件, 所有条件之间为AND
type Predicate struct {
	Owner string
	// 非空时 parent = Parent
	Parent string
	// parent = "root" OR parent为空
	RootLevel   bool
	StarredOnly bool
	Trash       TrashMode
	// 名称包含(不区分大小写), 空表示不限制
	NameContains string
}

// Build 按优先级构造查询条件, 第一个命中的分支生效:
// starred > trashed > 具体文件夹 > 根目录视图
func Build(owner string, opts Options) Predicate {
	p := Predicate{Owner: owner}

	switch {
	case opts.Starred:
		p.StarredOnly = true
		p.Trash = TrashExclude
	case opts.Trashed:
		p.Trash = TrashOnly
	case opts.Folder.IsFolder() && !IsReserved(opts.Folder.ID):
		p.Parent = opts.Folder.ID
		p.Trash = TrashExclude
	default:
		p.RootLevel = true
		p.Trash = TrashExclude
	}

	p.NameContains = strings.TrimSpace(opts.Search)
	return p
}

// Matches 在内存中判断记录是否满足条件, 与存储层的SQL语义一致
func (p Predicate) Matches(f *model.File) bool {
	if f.Owner != p.Owner {
		return false
	}
	if p.StarredOnly && !f.IsStarred {
		return false
	}
	switch p.Trash {
	case TrashOnly:
		if !f.IsTrashed {
			return false
		}
	default:
		if f.IsTrashed {
			return false
		}
	}
	if p.Parent != "" && f.Parent != p.Parent {
		return false
	}
	if p.RootLevel && f.Parent != model.RootFolder && f.Parent != "" {
		return false
	}
	if p.NameContains != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(p.NameContains)) {
		return false
	}
	return true
}

// ResolveParent 上传/新建文件夹的目标父目录
func ResolveParent(ref FolderRef) string {
	return ref.ParentValue()
}
