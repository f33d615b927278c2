package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/cache"
	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/timeutil"
)

const (
	maxCommentRunes   = 2000
	maxListedComments = 500
)

type CommentService struct {
	resolver *ShareResolver
	identity *GuestIdentity
	comments CommentStore
	docs     DocumentStore
	auth     authority
	coord    Invalidator
	views    *cache.Views[[]model.DocumentComment]
}

func NewCommentService(resolver *ShareResolver, identity *GuestIdentity, comments CommentStore, docs DocumentStore, members MemberStore, coord Invalidator, views *cache.Views[[]model.DocumentComment]) *CommentService {
	return &CommentService{
		resolver: resolver, identity: identity, comments: comments, docs: docs,
		auth: authority{members: members}, coord: coord, views: views,
	}
}

// CreateGuestComment posts as the commenter bound to the token's visitor.
// displayName only names a first-time commenter. The comment is committed
// before its tags are invalidated.
func (s *CommentService) CreateGuestComment(ctx context.Context, token, content, displayName string) (*model.DocumentComment, error) {
	d, err := s.resolver.Authorize(ctx, token, model.PermissionComment)
	if err != nil {
		return nil, err
	}
	content, err = normalizeComment(content)
	if err != nil {
		return nil, err
	}
	fingerprint := d.Fingerprint()
	if fingerprint == "" || d.Document == nil {
		return nil, appErr.ErrNoToken
	}
	commenter, err := s.identity.Identify(ctx, d.Link.ID, fingerprint, displayName)
	if err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	comment := &model.DocumentComment{
		ID:               newID(),
		DocumentID:       d.Document.ID,
		ShareLinkID:      d.Link.ID,
		GuestCommenterID: commenter.ID,
		Author:           commenter.DisplayName,
		Content:          content,
		State:            model.CommentStateNormal,
		Ctime:            now,
		Mtime:            now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.coord.Invalidate(ctx, cachetag.ForComment(comment.DocumentID)...)
	return comment, nil
}

func (s *CommentService) CreateUserComment(ctx context.Context, userID, documentID, content string) (*model.DocumentComment, error) {
	content, err := normalizeComment(content)
	if err != nil {
		return nil, err
	}
	doc, err := s.readableDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.AllowComments {
		return nil, appErr.ErrForbidden
	}
	now := timeutil.NowUnix()
	comment := &model.DocumentComment{
		ID:         newID(),
		DocumentID: doc.ID,
		UserID:     userID,
		Content:    content,
		State:      model.CommentStateNormal,
		Ctime:      now,
		Mtime:      now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.coord.Invalidate(ctx, cachetag.ForComment(comment.DocumentID)...)
	return comment, nil
}

// ListByToken lists the comments visible through a guest token. Image links
// have no comment thread.
func (s *CommentService) ListByToken(ctx context.Context, token string) ([]model.DocumentComment, error) {
	d, err := s.resolver.Authorize(ctx, token, model.PermissionView)
	if err != nil {
		return nil, err
	}
	return s.ListForDecision(ctx, d)
}

// ListForDecision lists comments for an access decision already made,
// including anonymous ones.
func (s *CommentService) ListForDecision(ctx context.Context, d *Decision) ([]model.DocumentComment, error) {
	if d == nil || d.Document == nil {
		return []model.DocumentComment{}, nil
	}
	return s.list(ctx, d.Document.ID)
}

func (s *CommentService) ListForUser(ctx context.Context, userID, documentID string) ([]model.DocumentComment, error) {
	if _, err := s.readableDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.list(ctx, documentID)
}

// Delete removes a comment. Its author, the document owner and organization
// editors may delete.
func (s *CommentService) Delete(ctx context.Context, userID, commentID string) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID == "" || comment.UserID != userID {
		doc, err := s.docs.GetByID(ctx, comment.DocumentID)
		if err != nil {
			return err
		}
		if err := s.auth.requireManage(ctx, userID, doc.UserID, doc.OrganizationID); err != nil {
			return err
		}
	}
	if err := s.comments.Delete(ctx, comment.ID, timeutil.NowUnix()); err != nil {
		return err
	}
	s.coord.Invalidate(ctx, cachetag.ForComment(comment.DocumentID)...)
	logutil.GetLogger(ctx).Info("comment deleted",
		zap.String("comment_id", comment.ID),
		zap.String("document_id", comment.DocumentID),
		zap.Bool("guest", comment.IsGuest()),
	)
	return nil
}

func (s *CommentService) list(ctx context.Context, documentID string) ([]model.DocumentComment, error) {
	return s.views.Get(ctx, documentID, []cachetag.Tag{cachetag.Comments(documentID)},
		func(ctx context.Context) ([]model.DocumentComment, error) {
			return s.comments.ListByDocument(ctx, documentID, 0, maxListedComments)
		})
}

func (s *CommentService) readableDocument(ctx context.Context, userID, documentID string) (*model.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.State != model.ResourceStateNormal {
		return nil, appErr.ErrNotFound
	}
	if err := s.auth.requireRead(ctx, userID, doc.UserID, doc.OrganizationID); err != nil {
		return nil, err
	}
	return doc, nil
}

func normalizeComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxCommentRunes {
		return "", appErr.ErrInvalid
	}
	return content, nil
}
