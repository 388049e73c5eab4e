// Package handlers binds client events to the chat services, one file per
// event family.
package handlers

import "lchat/service/chat"

func Register(s *chat.Server) {
	s.Handle("chat:userJoined", handleJoin)
	s.Handle("chat:heartbeat", handleHeartbeat)

	s.Handle("chat:subscribeToStatus", handleSubscribeStatus)
	s.Handle("chat:chatOpen", handleChatOpen)
	s.Handle("chat:typing", handleTyping)
	s.Handle("chat:profilePicUpdated", handleProfilePicUpdated)

	s.Handle("chat:chatMessage", handleChatMessage)
	s.Handle("chat:acknowledgment", handleAcknowledgment)

	s.Handle("chat:getChatUserProfileInfo", handleProfileInfo)
	s.Handle("chat:queryPublicKey", handleQueryPublicKey)

	s.Handle("chat:startFileTransfer", handleStartFileTransfer)
	s.Handle("chat:sendFileChunk", handleSendFileChunk)
	s.Handle("chat:startThumbnailTransfer", handleStartThumbnailTransfer)
	s.Handle("chat:sendThumbnailChunk", handleSendThumbnailChunk)
	s.Handle("chat:fileTransferError", handleFileTransferError)

	s.Handle("chat:sendMedia", handleSendMedia)
	s.Handle("chat:sendVisualMedia", handleSendVisualMedia)
	s.Handle("chat:mediaStatus", handleMediaStatus)
}
