/*
Package peerwire implements the BitTorrent peer wire engine for a single torrent: sessions with
remote peers, piece selection, choking, and verification of downloaded pieces.

Discovering peers, parsing metadata, and laying out content on disk are left to the caller, who
supplies connections, a metainfo.Info and a storage.PieceStore.

	s, _ := peerwire.NewSwarm(&info, infoHash, store, peerwire.NewDefaultSwarmConfig())
	defer s.Close()
	s.AddPeer(ctx, conn, true)
	<-s.Complete()
*/
package peerwire
