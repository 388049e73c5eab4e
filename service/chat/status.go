package chat

import "strconv"

// Protocol statuses surfaced through result callbacks. These are wire values;
// clients switch on them, so they never change spelling.
const (
	StatusSuccess          = "Success"
	StatusUserNotActive    = "USER_NOT_ACTIVE"
	StatusFailedOnKey      = "FAILED_ON_KEY"
	StatusKeyError         = "KEY_ERROR"
	StatusTransferNotFound = "MEDIA_TRANSFER_NOT_FOUND"
	StatusUnknownError     = "UNKNOWN_ERROR"
)

// Transfer completion statuses.
const (
	StatusFileTransferCompleted    = "FILE_TRANSFER_COMPLETED"
	StatusThumbnailCompleted       = "THUMBNAIL_TRANSFER_COMPLETED"
	StatusFileAlreadyComplete      = "ALL_CHUNKS_RECEIVED_FILE_TRANSFER_COMPLETED"
	StatusThumbnailAlreadyComplete = "ALL_CHUNKS_RECEIVED_THUMBNAIL_TRANSFER_COMPLETED"
)

// Server→client event names (socket protocol compatibility).
const (
	EventAck             = "ack"
	EventChatMessage     = "chat:chatMessage"
	EventOfflineMessages = "chat:offlineMessages"
	EventMessageStatus   = "chat:messageStatus"
	EventCheck           = "chat:check"
	EventTyping          = "chat:typing"
	EventProfileInfo     = "chat:profileInfo"
)

func EventOnlineStatus(userID string) string { return "chat:onlineStatus-" + userID }

func EventChunkAck(fileID string, chunkIndex int) string {
	return "chat:mediaChunkAck-" + fileID + "-" + strconv.Itoa(chunkIndex)
}

func EventThumbnailChunkAck(fileID string, chunkIndex int) string {
	return "chat:mediaThumbnailChunkAck-" + fileID + "-" + strconv.Itoa(chunkIndex)
}

func EventFileTransferCompleted(fileID string) string {
	return "chat:fileTransferCompleted-" + fileID
}

func EventThumbnailTransferCompleted(fileID string) string {
	return "chat:thumbnailTransferCompleted-" + fileID
}
