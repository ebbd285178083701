package models

type PostType string

const (
	PostTypePost   PostType = "post"
	PostTypeReel   PostType = "reel"
	PostTypeThread PostType = "thread"
)
